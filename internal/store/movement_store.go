package store

import (
	"context"

	"ledgerbank/internal/models"

	"github.com/lib/pq"
)

// MovementStore persists movements in the transactions table.
type MovementStore struct {
	db DB
}

func NewMovementStore(db DB) *MovementStore {
	return &MovementStore{db: db}
}

// ListByAccounts returns the movements of every listed account, newest first.
func (s *MovementStore) ListByAccounts(ctx context.Context, q Selecter, accountIDs []string) ([]models.Movement, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var rows []models.Movement
	err := q.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, amount, description, date, balance
		FROM transactions
		WHERE user_id = ANY($1)
		ORDER BY date DESC, id
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MovementStore) InsertMany(ctx context.Context, tx Execer, accountID string, movements []models.Movement) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, description, date, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, m := range movements {
		if _, err := tx.ExecContext(ctx, query, m.ID, accountID, string(m.Type), m.Amount, m.Description, m.Date, m.Balance); err != nil {
			return err
		}
	}
	return nil
}

func (s *MovementStore) DeleteByAccount(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, accountID)
	return err
}
