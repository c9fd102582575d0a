package store

import (
	"context"
	"database/sql"
)

// Execer, Getter and Selecter are the slices of sqlx used by the table
// stores. Both *sqlx.DB and *sqlx.Tx satisfy them, so a store method runs
// inside or outside a transaction depending on what it is handed.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}
