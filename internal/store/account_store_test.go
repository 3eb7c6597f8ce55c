package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"ledgerbank/internal/models"

	"github.com/shopspring/decimal"
)

func TestAccountStoreInsert(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 {
				t.Fatalf("expected 7 args, got %d", len(args))
			}
			if args[0] != "acc-1" || args[1] != "4001-0000-00000001" || args[5] != "user" {
				t.Fatalf("unexpected args: %#v", args)
			}
			if balance, ok := args[6].(decimal.Decimal); !ok || !balance.Equal(decimal.RequireFromString("10.50")) {
				t.Fatalf("unexpected balance arg: %#v", args[6])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAccountStore(stubDB{})
	account := models.Account{
		ID:            "acc-1",
		AccountNumber: "4001-0000-00000001",
		FullName:      "Ana Perez",
		Email:         "ana@example.com",
		PasswordHash:  "hash",
		Role:          models.RoleUser,
		Balance:       decimal.RequireFromString("10.50"),
	}
	if err := store.Insert(ctx, execer, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccountStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM users") || !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*[]models.Account) = []models.Account{{ID: "acc-2"}, {ID: "acc-1"}}
			return nil
		},
	})
	rows, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "acc-2" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestAccountStoreGetForUpdateLocks(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got query: %s", query)
			}
			if len(args) != 1 || args[0] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.Account) = models.Account{ID: "acc-1", Balance: decimal.NewFromInt(5)}
			return nil
		},
	}
	store := NewAccountStore(stubDB{})
	row, err := store.GetForUpdate(ctx, getter, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "acc-1" || !row.Balance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestAccountStoreGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(stubDB{})
	getter := stubGetter{
		getFn: func(context.Context, any, string, ...any) error { return sql.ErrNoRows },
	}
	if _, err := store.GetByID(ctx, getter, "missing"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAccountStoreUpdateScalars(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE users") || !strings.Contains(query, "NULLIF($4, '')") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 || args[6] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAccountStore(stubDB{})
	rows, err := store.UpdateScalars(ctx, execer, models.Account{ID: "acc-1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}
}

func TestAccountStoreDelete(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM users") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: 0}, nil
		},
	}
	store := NewAccountStore(stubDB{})
	rows, err := store.Delete(ctx, execer, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows, got %d", rows)
	}
}

func TestAccountStoreEmailTaken(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "lower(email) = lower($1)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "Ana@Example.com" || args[1] != "acc-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*bool) = true
			return nil
		},
	}
	store := NewAccountStore(stubDB{})
	taken, err := store.EmailTaken(ctx, getter, "Ana@Example.com", "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !taken {
		t.Fatalf("expected email to be taken")
	}
}

func TestAccountStoreHasAdmin(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "role = 'admin'") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = false
			return nil
		},
	})
	exists, err := store.HasAdmin(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatalf("expected no admin")
	}
}
