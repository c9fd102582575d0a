package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestAuditStoreLog(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO audit_logs") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[1] != "pay" || args[2] != "wallet" || args[3] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			if ptr, ok := args[0].(*string); !ok || ptr == nil || *ptr != "user-1" {
				t.Fatalf("unexpected actor arg: %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAuditStore(stubDB{})
	err := store.Log(ctx, execer, AuditEntry{ActorID: "user-1", Action: "pay", EntityType: "wallet", EntityID: "user-1", Data: "{}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditStoreLogWithoutActor(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, _ string, args ...any) (sql.Result, error) {
			if ptr, ok := args[0].(*string); !ok || ptr != nil {
				t.Fatalf("expected nil actor, got %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := NewAuditStore(stubDB{}).Log(context.Background(), execer, AuditEntry{Action: "signup"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
