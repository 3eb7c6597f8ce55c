//go:build integration

package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledgerbank/internal/db"
	"ledgerbank/internal/logging"
	"ledgerbank/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	pg, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := db.Connect(ctx, dsn, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.Migrate(ctx, conn, filepath.Join("..", "..", "migrations"), logging.Discard())
	require.NoError(t, err)
	return conn
}

func sampleAccount(suffix string) models.Account {
	when := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.Account{
		AccountNumber: "4001-0000-0000000" + suffix,
		FullName:      "Account " + suffix,
		Email:         "user" + suffix + "@example.com",
		PasswordHash:  "hash",
		Role:          models.RoleUser,
		Balance:       decimal.RequireFromString("70.00"),
		Movements: []models.Movement{
			{Type: models.MovementDeposit, Amount: decimal.RequireFromString("100.00"), Description: "salary", Date: when, Balance: decimal.RequireFromString("100.00")},
			{Type: models.MovementWithdrawal, Amount: decimal.RequireFromString("30.00"), Description: "rent", Date: when.Add(time.Hour), Balance: decimal.RequireFromString("70.00")},
		},
		Credits: []models.Credit{
			{Amount: decimal.RequireFromString("100.00"), Limit: decimal.RequireFromString("500.00"), InterestRate: decimal.RequireFromString("24.99"), DueDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Status: models.CreditActive},
		},
		Loans: []models.Loan{
			{Amount: decimal.RequireFromString("1000.00"), InterestRate: decimal.RequireFromString("12.50"), Term: 12, MonthlyPayment: decimal.RequireFromString("89.08"), RemainingBalance: decimal.RequireFromString("1000.00"), Status: models.LoanActive, StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestIntegrationInsertRoundTrip(t *testing.T) {
	require := require.New(t)
	conn := setupPostgres(t)
	repo := NewAccountRepository(conn, db.NewTxRunner(conn))
	ctx := context.Background()

	created, err := repo.Insert(ctx, sampleAccount("1"))
	require.NoError(err)

	accounts, err := repo.FindAll(ctx)
	require.NoError(err)
	require.Len(accounts, 1)
	got := accounts[0]
	require.Equal(created.ID, got.ID)
	require.Equal("user1@example.com", got.Email)
	require.True(got.Balance.Equal(decimal.RequireFromString("70")))
	require.Len(got.Movements, 2)
	require.Equal("rent", got.Movements[0].Description)
	require.True(got.Balance.Equal(got.LedgerBalance()))
	require.Len(got.Credits, 1)
	require.True(got.Credits[0].Limit.Equal(decimal.RequireFromString("500")))
	require.Len(got.Loans, 1)
	require.Equal(12, got.Loans[0].Term)
}

func TestIntegrationDeleteCascades(t *testing.T) {
	require := require.New(t)
	conn := setupPostgres(t)
	repo := NewAccountRepository(conn, db.NewTxRunner(conn))
	ctx := context.Background()

	created, err := repo.Insert(ctx, sampleAccount("2"))
	require.NoError(err)

	removed, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(err)
	require.True(removed)

	for _, table := range []string{"transactions", "credit_cards", "loans"} {
		var count int
		require.NoError(conn.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = $1", table), created.ID))
		require.Zero(count, table)
	}

	removed, err = repo.DeleteByID(ctx, created.ID)
	require.NoError(err)
	require.False(removed)
}

func TestIntegrationConcurrentUpdatesSerialize(t *testing.T) {
	require := require.New(t)
	conn := setupPostgres(t)
	repo := NewAccountRepository(conn, db.NewTxRunner(conn))
	ctx := context.Background()

	created, err := repo.Insert(ctx, sampleAccount("3"))
	require.NoError(err)

	const writers = 8
	submitted := make([]string, writers)
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		version := created.Clone()
		description := fmt.Sprintf("writer-%d", i)
		submitted[i] = description
		version.Movements = []models.Movement{
			{Type: models.MovementDeposit, Amount: decimal.NewFromInt(int64(i + 1)), Description: description, Date: time.Now().UTC(), Balance: decimal.NewFromInt(int64(i + 1))},
		}
		version.Balance = decimal.NewFromInt(int64(i + 1))
		wg.Add(1)
		go func(account models.Account) {
			defer wg.Done()
			errs <- repo.Update(ctx, account)
		}(version)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	final, err := repo.FindByID(ctx, created.ID)
	require.NoError(err)
	require.Len(final.Movements, 1)
	require.Contains(submitted, final.Movements[0].Description)
	require.True(final.Balance.Equal(final.LedgerBalance()))
}
