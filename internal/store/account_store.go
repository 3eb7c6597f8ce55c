package store

import (
	"context"

	"ledgerbank/internal/models"
)

const accountColumns = `id, account_number, full_name, email, password_hash, role, balance, created_at, updated_at`

// AccountStore maps the scalar part of an account onto the users table.
type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) List(ctx context.Context) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM users
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) GetByID(ctx context.Context, q Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := q.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM users WHERE id = $1`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate locks the account row until tx ends. Every write to an
// account or its children goes through this lock first.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) Insert(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, account_number, full_name, email, password_hash, role, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.AccountNumber, account.FullName, account.Email, account.PasswordHash, string(account.Role), account.Balance)
	return err
}

// UpdateScalars overwrites every scalar column. An empty password hash keeps
// the stored one.
func (s *AccountStore) UpdateScalars(ctx context.Context, tx Execer, account models.Account) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET account_number = $1,
		    full_name = $2,
		    email = $3,
		    password_hash = COALESCE(NULLIF($4, ''), password_hash),
		    role = $5,
		    balance = $6,
		    updated_at = NOW()
		WHERE id = $7
	`, account.AccountNumber, account.FullName, account.Email, account.PasswordHash, string(account.Role), account.Balance, account.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the account row; movements, credits and loans go with it
// through ON DELETE CASCADE.
func (s *AccountStore) Delete(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EmailTaken reports whether another account already uses email. excludeID
// may be empty.
func (s *AccountStore) EmailTaken(ctx context.Context, q Getter, email, excludeID string) (bool, error) {
	var taken bool
	err := q.GetContext(ctx, &taken, `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE lower(email) = lower($1) AND id::text <> $2
		)
	`, email, excludeID)
	return taken, err
}

func (s *AccountStore) AccountNumberTaken(ctx context.Context, q Getter, accountNumber string) (bool, error) {
	var taken bool
	err := q.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM users WHERE account_number = $1)`, accountNumber)
	return taken, err
}

func (s *AccountStore) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE role = 'admin')`)
	return exists, err
}
