package handlers

import (
	"context"
	"time"

	"ledgerbank/internal/models"
	"ledgerbank/internal/services"

	"github.com/shopspring/decimal"
)

type AccountService interface {
	Authenticate(ctx context.Context, email, password string) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	CreateAccount(ctx context.Context, profile services.Profile) (models.Account, error)
	ReplaceAccount(ctx context.Context, accountID string, replacement models.Account, password string) (models.Account, error)
	EditProfile(ctx context.Context, accountID string, changes services.ProfileChanges) (models.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
	RecordMovement(ctx context.Context, accountID string, movementType models.MovementType, amount decimal.Decimal, description string) (models.Account, error)
	AssignCredit(ctx context.Context, accountID string, amount, limit, interestRate decimal.Decimal, dueDate *time.Time) (models.Account, error)
	AssignLoan(ctx context.Context, accountID string, amount, interestRate decimal.Decimal, termMonths int) (models.Account, error)
}
