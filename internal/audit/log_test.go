package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"posthub.org/internal/auth"
	"posthub.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetLogger(obs.NewLogger(&buf, "info"))
	defer restore()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, &auth.User{ID: 42, Username: "alice"})

	if err := LogEvent(ctx, EventPostCreated, map[string]any{"post_id": 7}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != EventPostCreated {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["username"] != "alice" {
		t.Fatalf("unexpected username: %v", entry["username"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["post_id"] != float64(7) {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for blank event")
	}
}

func TestLogEventWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetLogger(obs.NewLogger(&buf, "info"))
	defer restore()

	if err := LogEvent(context.Background(), EventLoginFailed, nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if _, ok := entry["username"]; ok {
		t.Fatalf("username must be absent without an authenticated user")
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatalf("request_id must be absent without one in context")
	}
}
