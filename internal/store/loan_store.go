package store

import (
	"context"

	"ledgerbank/internal/models"

	"github.com/lib/pq"
)

type LoanStore struct {
	db DB
}

func NewLoanStore(db DB) *LoanStore {
	return &LoanStore{db: db}
}

func (s *LoanStore) ListByAccounts(ctx context.Context, q Selecter, accountIDs []string) ([]models.Loan, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var rows []models.Loan
	err := q.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, interest_rate, term, monthly_payment, remaining_balance, status, start_date, created_at
		FROM loans
		WHERE user_id = ANY($1)
		ORDER BY created_at DESC, id
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LoanStore) InsertMany(ctx context.Context, tx Execer, accountID string, loans []models.Loan) error {
	query := `
		INSERT INTO loans (id, user_id, amount, interest_rate, term, monthly_payment, remaining_balance, status, start_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, l := range loans {
		if _, err := tx.ExecContext(ctx, query, l.ID, accountID, l.Amount, l.InterestRate, l.Term, l.MonthlyPayment, l.RemainingBalance, string(l.Status), l.StartDate, l.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *LoanStore) DeleteByAccount(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE user_id = $1`, accountID)
	return err
}
