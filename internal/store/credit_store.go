package store

import (
	"context"
	"time"

	"ledgerbank/internal/models"

	"github.com/lib/pq"
)

// CreditStore persists credit lines in the credit_cards table.
type CreditStore struct {
	db DB
}

func NewCreditStore(db DB) *CreditStore {
	return &CreditStore{db: db}
}

func (s *CreditStore) ListByAccounts(ctx context.Context, q Selecter, accountIDs []string) ([]models.Credit, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var rows []models.Credit
	err := q.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, credit_limit, interest_rate, due_date, status, created_at
		FROM credit_cards
		WHERE user_id = ANY($1)
		ORDER BY created_at DESC, id
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertMany writes credits as given. CreatedAt is stored verbatim so that a
// resync keeps the original listing order.
func (s *CreditStore) InsertMany(ctx context.Context, tx Execer, accountID string, credits []models.Credit) error {
	query := `
		INSERT INTO credit_cards (id, user_id, amount, credit_limit, interest_rate, due_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, c := range credits {
		if _, err := tx.ExecContext(ctx, query, c.ID, accountID, c.Amount, c.Limit, c.InterestRate, c.DueDate, string(c.Status), c.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *CreditStore) DeleteByAccount(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM credit_cards WHERE user_id = $1`, accountID)
	return err
}

// MarkOverdue flips active credits whose due date is before asOf and returns
// the ids of the accounts touched.
func (s *CreditStore) MarkOverdue(ctx context.Context, asOf time.Time) ([]string, error) {
	var accountIDs []string
	err := s.db.SelectContext(ctx, &accountIDs, `
		UPDATE credit_cards
		SET status = 'overdue'
		WHERE status = 'active' AND due_date < $1
		RETURNING user_id
	`, asOf)
	if err != nil {
		return nil, err
	}
	return accountIDs, nil
}
