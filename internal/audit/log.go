package audit

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"

	"posthub.org/internal/auth"
	"posthub.org/internal/obs"
)

// Event names recorded by the API.
const (
	EventRegister        = "auth.register"
	EventLogin           = "auth.login"
	EventLoginFailed     = "auth.login_failed"
	EventLogout          = "auth.logout"
	EventPasswordChanged = "auth.password_changed"
	EventTokenRejected   = "auth.token_rejected"
	EventPostCreated     = "post.created"
	EventPostUpdated     = "post.updated"
	EventPostDeleted     = "post.deleted"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
// Callers must never pass tokens or passwords in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if user, ok := auth.UserFromContext(ctx); ok {
		attrs = append(attrs, slog.String("username", user.Username))
	}
	copyFields := make(map[string]any, len(fields))
	maps.Copy(copyFields, fields)
	attrs = append(attrs, slog.Any("fields", copyFields))

	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
