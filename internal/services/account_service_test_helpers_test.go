package services

import (
	"context"
	"sync"
	"time"

	"ledgerbank/internal/logging"
	"ledgerbank/internal/models"
	"ledgerbank/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubRepo struct {
	findAllFn            func(ctx context.Context) ([]models.Account, error)
	findByIDFn           func(ctx context.Context, accountID string) (models.Account, error)
	findByCredentialsFn  func(ctx context.Context, email, password string) (models.Account, error)
	insertTxFn           func(ctx context.Context, tx store.DB, account models.Account) (models.Account, error)
	lockByIDFn           func(ctx context.Context, tx store.DB, accountID string) (models.Account, error)
	resyncFn             func(ctx context.Context, tx store.DB, account models.Account) error
	deleteTxFn           func(ctx context.Context, tx store.DB, accountID string) (bool, error)
	emailTakenFn         func(ctx context.Context, q store.DB, email, excludeID string) (bool, error)
	accountNumberTakenFn func(ctx context.Context, q store.DB, accountNumber string) (bool, error)
	hasAdminFn           func(ctx context.Context) (bool, error)
	markOverdueFn        func(ctx context.Context, asOf time.Time) ([]string, error)
}

func (s stubRepo) FindAll(ctx context.Context) ([]models.Account, error) {
	if s.findAllFn == nil {
		return nil, nil
	}
	return s.findAllFn(ctx)
}

func (s stubRepo) FindByID(ctx context.Context, accountID string) (models.Account, error) {
	return s.findByIDFn(ctx, accountID)
}

func (s stubRepo) FindByCredentials(ctx context.Context, email, password string) (models.Account, error) {
	return s.findByCredentialsFn(ctx, email, password)
}

func (s stubRepo) InsertTx(ctx context.Context, tx store.DB, account models.Account) (models.Account, error) {
	if s.insertTxFn == nil {
		return account, nil
	}
	return s.insertTxFn(ctx, tx, account)
}

func (s stubRepo) LockByID(ctx context.Context, tx store.DB, accountID string) (models.Account, error) {
	return s.lockByIDFn(ctx, tx, accountID)
}

func (s stubRepo) Resync(ctx context.Context, tx store.DB, account models.Account) error {
	if s.resyncFn == nil {
		return nil
	}
	return s.resyncFn(ctx, tx, account)
}

func (s stubRepo) DeleteTx(ctx context.Context, tx store.DB, accountID string) (bool, error) {
	return s.deleteTxFn(ctx, tx, accountID)
}

func (s stubRepo) EmailTaken(ctx context.Context, q store.DB, email, excludeID string) (bool, error) {
	if s.emailTakenFn == nil {
		return false, nil
	}
	return s.emailTakenFn(ctx, q, email, excludeID)
}

func (s stubRepo) AccountNumberTaken(ctx context.Context, q store.DB, accountNumber string) (bool, error) {
	if s.accountNumberTakenFn == nil {
		return false, nil
	}
	return s.accountNumberTakenFn(ctx, q, accountNumber)
}

func (s stubRepo) HasAdmin(ctx context.Context) (bool, error) {
	if s.hasAdminFn == nil {
		return true, nil
	}
	return s.hasAdminFn(ctx)
}

func (s stubRepo) MarkOverdueCredits(ctx context.Context, asOf time.Time) ([]string, error) {
	if s.markOverdueFn == nil {
		return nil, nil
	}
	return s.markOverdueFn(ctx, asOf)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]models.Account
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]models.Account{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]models.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, key)
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string]decimal.Decimal
}

func (h *recordingHub) BroadcastBalance(accountID string, balance decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string]decimal.Decimal{}
	}
	h.updates[accountID] = balance
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	testAccountID    = "0f8fad5b-d9cb-469f-a165-70867728950e"
	missingAccountID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func newTestService(repo AccountRepository, runner fakeTxRunner) (*AccountService, *memoryCache, *recordingHub) {
	cache := newMemoryCache()
	hub := &recordingHub{}
	svc := NewAccountService(runner, repo, cache, hub, logging.Discard())
	svc.now = func() time.Time { return testNow }
	return svc, cache, hub
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
