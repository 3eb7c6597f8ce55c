// Package repository maps the account aggregate onto its four tables.
//
// Reads hydrate an account with its movements, credits and loans. Writes that
// touch an existing account lock the users row with SELECT ... FOR UPDATE and
// rewrite the children inside the same transaction, so a reader never sees a
// half-applied resync.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ledgerbank/internal/auth"
	"ledgerbank/internal/db"
	"ledgerbank/internal/ledger"
	"ledgerbank/internal/models"
	"ledgerbank/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AccountRepository struct {
	db        store.DB
	txRunner  db.TxRunner
	accounts  *store.AccountStore
	movements *store.MovementStore
	credits   *store.CreditStore
	loans     *store.LoanStore
	now       func() time.Time
}

func NewAccountRepository(conn store.DB, txRunner db.TxRunner) *AccountRepository {
	return &AccountRepository{
		db:        conn,
		txRunner:  txRunner,
		accounts:  store.NewAccountStore(conn),
		movements: store.NewMovementStore(conn),
		credits:   store.NewCreditStore(conn),
		loans:     store.NewLoanStore(conn),
		now:       time.Now,
	}
}

// FindAll returns every account newest-created first, hydrated.
func (r *AccountRepository) FindAll(ctx context.Context) ([]models.Account, error) {
	accounts, err := r.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, r.db, accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (models.Account, error) {
	return r.load(ctx, r.db, accountID, false)
}

// FindByCredentials returns the account whose email and password match. An
// unknown email still pays for one bcrypt comparison.
func (r *AccountRepository) FindByCredentials(ctx context.Context, email, password string) (models.Account, error) {
	row, err := r.accounts.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		auth.CheckPassword("", password)
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}
	if !auth.CheckPassword(row.PasswordHash, password) {
		return models.Account{}, ErrInvalidCredentials
	}
	accounts := []models.Account{row}
	if err := r.hydrate(ctx, r.db, accounts); err != nil {
		return models.Account{}, err
	}
	return accounts[0], nil
}

// Insert stores a new account and its children in one transaction.
func (r *AccountRepository) Insert(ctx context.Context, account models.Account) (models.Account, error) {
	var created models.Account
	err := r.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = r.InsertTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	return created, nil
}

// InsertTx assigns an id when none is set and records an opening deposit
// when the account starts with money but no history.
func (r *AccountRepository) InsertTx(ctx context.Context, tx store.DB, account models.Account) (models.Account, error) {
	created := account.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.Role == "" {
		created.Role = models.RoleUser
	}
	if len(created.Movements) == 0 && created.Balance.IsPositive() {
		created.Movements = []models.Movement{ledger.OpeningDeposit(created.ID, created.Balance, r.now())}
	}
	assignChildDefaults(&created, r.now())
	if err := r.accounts.Insert(ctx, tx, created); err != nil {
		return models.Account{}, err
	}
	if err := r.insertChildren(ctx, tx, created); err != nil {
		return models.Account{}, err
	}
	return created, nil
}

// Update overwrites the stored aggregate with account under the row lock.
func (r *AccountRepository) Update(ctx context.Context, account models.Account) error {
	return r.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := r.LockByID(ctx, tx, account.ID); err != nil {
			return err
		}
		return r.Resync(ctx, tx, account)
	})
}

// LockByID loads the account with its row locked for the rest of tx.
func (r *AccountRepository) LockByID(ctx context.Context, tx store.DB, accountID string) (models.Account, error) {
	return r.load(ctx, tx, accountID, true)
}

// Resync writes the scalar fields and replaces every child row. The caller
// must hold the row lock taken by LockByID in the same tx.
func (r *AccountRepository) Resync(ctx context.Context, tx store.DB, account models.Account) error {
	synced := account.Clone()
	assignChildDefaults(&synced, r.now())
	affected, err := r.accounts.UpdateScalars(ctx, tx, synced)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	if err := r.movements.DeleteByAccount(ctx, tx, synced.ID); err != nil {
		return err
	}
	if err := r.credits.DeleteByAccount(ctx, tx, synced.ID); err != nil {
		return err
	}
	if err := r.loans.DeleteByAccount(ctx, tx, synced.ID); err != nil {
		return err
	}
	return r.insertChildren(ctx, tx, synced)
}

// DeleteByID reports whether a row was removed.
func (r *AccountRepository) DeleteByID(ctx context.Context, accountID string) (bool, error) {
	var removed bool
	err := r.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		removed, err = r.DeleteTx(ctx, tx, accountID)
		return err
	})
	return removed, err
}

func (r *AccountRepository) DeleteTx(ctx context.Context, tx store.DB, accountID string) (bool, error) {
	if _, err := r.accounts.GetForUpdate(ctx, tx, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	affected, err := r.accounts.Delete(ctx, tx, accountID)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *AccountRepository) EmailTaken(ctx context.Context, q store.DB, email, excludeID string) (bool, error) {
	return r.accounts.EmailTaken(ctx, q, email, excludeID)
}

func (r *AccountRepository) AccountNumberTaken(ctx context.Context, q store.DB, accountNumber string) (bool, error) {
	return r.accounts.AccountNumberTaken(ctx, q, accountNumber)
}

func (r *AccountRepository) HasAdmin(ctx context.Context) (bool, error) {
	return r.accounts.HasAdmin(ctx)
}

// MarkOverdueCredits returns the distinct ids of accounts that had at least
// one credit flipped to overdue.
func (r *AccountRepository) MarkOverdueCredits(ctx context.Context, asOf time.Time) ([]string, error) {
	ids, err := r.credits.MarkOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (r *AccountRepository) load(ctx context.Context, q store.DB, accountID string, lock bool) (models.Account, error) {
	var (
		row models.Account
		err error
	)
	if lock {
		row, err = r.accounts.GetForUpdate(ctx, q, accountID)
	} else {
		row, err = r.accounts.GetByID(ctx, q, accountID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	accounts := []models.Account{row}
	if err := r.hydrate(ctx, q, accounts); err != nil {
		return models.Account{}, err
	}
	return accounts[0], nil
}

func (r *AccountRepository) hydrate(ctx context.Context, q store.Selecter, accounts []models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	ids := make([]string, len(accounts))
	index := make(map[string]int, len(accounts))
	for i := range accounts {
		ids[i] = accounts[i].ID
		index[accounts[i].ID] = i
		accounts[i].Movements = []models.Movement{}
		accounts[i].Credits = []models.Credit{}
		accounts[i].Loans = []models.Loan{}
	}
	movements, err := r.movements.ListByAccounts(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, m := range movements {
		if i, ok := index[m.AccountID]; ok {
			accounts[i].Movements = append(accounts[i].Movements, m)
		}
	}
	credits, err := r.credits.ListByAccounts(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, c := range credits {
		if i, ok := index[c.AccountID]; ok {
			accounts[i].Credits = append(accounts[i].Credits, c)
		}
	}
	loans, err := r.loans.ListByAccounts(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, l := range loans {
		if i, ok := index[l.AccountID]; ok {
			accounts[i].Loans = append(accounts[i].Loans, l)
		}
	}
	return nil
}

func (r *AccountRepository) insertChildren(ctx context.Context, tx store.Execer, account models.Account) error {
	if err := r.movements.InsertMany(ctx, tx, account.ID, account.Movements); err != nil {
		return err
	}
	if err := r.credits.InsertMany(ctx, tx, account.ID, account.Credits); err != nil {
		return err
	}
	return r.loans.InsertMany(ctx, tx, account.ID, account.Loans)
}

// assignChildDefaults attaches every child to account, replaces ids the
// uuid columns cannot hold and stamps a creation time on credits and loans
// that have none.
func assignChildDefaults(account *models.Account, now time.Time) {
	created := now.UTC().Truncate(time.Microsecond)
	for i := range account.Movements {
		account.Movements[i].ID = storableID(account.Movements[i].ID)
		account.Movements[i].AccountID = account.ID
	}
	for i := range account.Credits {
		account.Credits[i].ID = storableID(account.Credits[i].ID)
		account.Credits[i].AccountID = account.ID
		if account.Credits[i].CreatedAt.IsZero() {
			account.Credits[i].CreatedAt = created
		}
	}
	for i := range account.Loans {
		account.Loans[i].ID = storableID(account.Loans[i].ID)
		account.Loans[i].AccountID = account.ID
		if account.Loans[i].CreatedAt.IsZero() {
			account.Loans[i].CreatedAt = created
		}
	}
}

func storableID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.NewString()
	}
	return parsed.String()
}
