package store

import (
	"context"
	"database/sql"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is satisfied by both *sqlx.DB and *sqlx.Tx, so reads can run either on
// the pool or inside the transaction that holds the account lock.
type DB interface {
	Execer
	Getter
	Selecter
}
