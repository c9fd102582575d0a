package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	want := []string{
		"00001_create_users.sql",
		"00002_create_wallets.sql",
		"00003_create_transactions.sql",
		"00004_create_audit_logs.sql",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for _, name := range names {
		body, err := fs.ReadFile(Migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestTransactionsCarrySequence(t *testing.T) {
	body, err := fs.ReadFile(Migrations, "00003_create_transactions.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "seq           BIGSERIAL") {
		t.Fatalf("transactions table must carry a seq column for stable ordering")
	}
}

func TestUpRunsEmbeddedDir(t *testing.T) {
	db := newDB(t)
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := Up(context.Background(), db); err != nil {
		t.Fatalf("Up error: %v", err)
	}
}

func TestUpPropagatesError(t *testing.T) {
	db := newDB(t)
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	if err := Up(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDownRunsEmbeddedDir(t *testing.T) {
	db := newDB(t)
	orig := gooseDownContext
	var called bool
	gooseDownContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = dir == "."
		return nil
	}
	defer func() { gooseDownContext = orig }()

	if err := Down(context.Background(), db); err != nil || !called {
		t.Fatalf("Down error: %v (called=%v)", err, called)
	}
}
