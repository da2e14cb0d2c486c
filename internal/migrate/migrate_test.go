package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, "sql/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %v", files)
	}
	for _, name := range files {
		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		text := string(body)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", name)
		}
	}
}

func TestUpUsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	if err := Up(context.Background(), nil); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if gotDir != migrationsDir {
		t.Fatalf("expected dir %q, got %q", migrationsDir, gotDir)
	}
}

func TestDownWrapsError(t *testing.T) {
	orig := gooseDown
	defer func() { gooseDown = orig }()

	boom := errors.New("boom")
	gooseDown = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}
	err := Down(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	orig := gooseVersion
	defer func() { gooseVersion = orig }()

	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) { return 2, nil }
	v, err := Version(context.Background(), nil)
	if err != nil || v != 2 {
		t.Fatalf("Version = %d, %v", v, err)
	}
}
