// Package ledger holds the pure balance, credit and loan rules. Nothing in
// here touches storage; callers persist the returned accounts.
package ledger

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"ledgerbank/internal/models"
	"ledgerbank/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidCredit       = errors.New("invalid credit")
	ErrInvalidLoan         = errors.New("invalid loan")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidMovementType = errors.New("invalid movement type")
	ErrInvalidAccount      = errors.New("invalid account")
)

const (
	AccountNumberPrefix = "4001"
	DefaultCreditTerm   = 30 * 24 * time.Hour
	InitialDepositNote  = "Initial deposit"

	// intermediate precision for amortization arithmetic
	ratePrecision = 16
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ApplyMovement returns a copy of account with the movement appended and the
// balance moved. The input account is left untouched.
func ApplyMovement(account models.Account, movementType models.MovementType, amount decimal.Decimal, description string, now time.Time) (models.Account, error) {
	if !movementType.Valid() {
		return models.Account{}, ErrInvalidMovementType
	}
	if err := money.CheckPositive(amount); err != nil {
		return models.Account{}, ErrInvalidAmount
	}
	newBalance := account.Balance.Add(amount)
	if movementType.Debit() {
		newBalance = account.Balance.Sub(amount)
	}
	if newBalance.IsNegative() {
		return models.Account{}, ErrInsufficientFunds
	}
	if !money.InRange(newBalance) {
		return models.Account{}, ErrInvalidAmount
	}
	date := storedTime(now)
	if latest, ok := account.LatestMovement(); ok {
		if previous := storedTime(latest.Date); !date.After(previous) {
			date = previous.Add(time.Microsecond)
		}
	}
	updated := account.Clone()
	updated.Balance = newBalance
	updated.Movements = append(updated.Movements, models.Movement{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		Type:        movementType,
		Amount:      amount,
		Description: description,
		Date:        date,
		Balance:     newBalance,
	})
	return updated, nil
}

// ComputeMonthlyPayment uses the standard amortization formula
// P*r*(1+r)^n / ((1+r)^n - 1) with r the monthly rate. A zero rate pays the
// principal off in equal parts. The result is rounded to cents in both cases,
// so 100 over 3 months pays 33.33.
func ComputeMonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent.IsZero() {
		return money.Round(principal.DivRound(n, ratePrecision))
	}
	r := annualRatePercent.DivRound(hundred, ratePrecision).DivRound(twelve, ratePrecision)
	growth := compound(decimal.NewFromInt(1).Add(r), termMonths)
	numerator := principal.Mul(r).Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))
	return money.Round(numerator.DivRound(denominator, ratePrecision))
}

func compound(base decimal.Decimal, periods int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for i := 0; i < periods; i++ {
		result = result.Mul(base).Round(ratePrecision)
	}
	return result
}

// AssignCredit attaches an active credit line. dueDate defaults to 30 days
// after now.
func AssignCredit(account models.Account, amount, limit, interestRate decimal.Decimal, dueDate *time.Time, now time.Time) (models.Account, error) {
	if !amount.IsPositive() || !limit.IsPositive() || !interestRate.IsPositive() {
		return models.Account{}, ErrInvalidCredit
	}
	if amount.GreaterThan(limit) || !money.InRange(limit) {
		return models.Account{}, ErrInvalidCredit
	}
	if !money.HasCents(amount) || !money.HasCents(limit) || !money.HasCents(interestRate) {
		return models.Account{}, ErrInvalidCredit
	}
	due := now.Add(DefaultCreditTerm)
	if dueDate != nil {
		due = *dueDate
	}
	updated := account.Clone()
	updated.Credits = append(updated.Credits, models.Credit{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		Amount:       amount,
		Limit:        limit,
		InterestRate: interestRate,
		DueDate:      truncateDay(due),
		Status:       models.CreditActive,
		CreatedAt:    storedTime(now),
	})
	return updated, nil
}

func AssignLoan(account models.Account, amount, interestRate decimal.Decimal, termMonths int, now time.Time) (models.Account, error) {
	if termMonths <= 0 || interestRate.IsNegative() {
		return models.Account{}, ErrInvalidLoan
	}
	if err := money.CheckPositive(amount); err != nil {
		return models.Account{}, ErrInvalidLoan
	}
	if !money.HasCents(interestRate) {
		return models.Account{}, ErrInvalidLoan
	}
	updated := account.Clone()
	updated.Loans = append(updated.Loans, models.Loan{
		ID:               uuid.NewString(),
		AccountID:        account.ID,
		Amount:           amount,
		InterestRate:     interestRate,
		Term:             termMonths,
		MonthlyPayment:   ComputeMonthlyPayment(amount, interestRate, termMonths),
		RemainingBalance: amount,
		Status:           models.LoanActive,
		StartDate:        truncateDay(now),
		CreatedAt:        storedTime(now),
	})
	return updated, nil
}

// GenerateAccountNumber returns PREFIX-XXXX-XXXXXXXX. Callers must check the
// result against existing accounts; uniqueness is not guaranteed here.
func GenerateAccountNumber() (string, error) {
	limit := big.NewInt(1_000_000_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	digits := fmt.Sprintf("%012d", n.Int64())
	return fmt.Sprintf("%s-%s-%s", AccountNumberPrefix, digits[:4], digits[4:]), nil
}

// OpeningDeposit builds the movement recorded for an account created with a
// positive starting balance.
func OpeningDeposit(accountID string, balance decimal.Decimal, now time.Time) models.Movement {
	return models.Movement{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Type:        models.MovementDeposit,
		Amount:      balance,
		Description: InitialDepositNote,
		Date:        storedTime(now),
		Balance:     balance,
	}
}

// Validate checks an aggregate submitted for a full overwrite.
func Validate(account models.Account) error {
	if !account.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidAccount, account.Role)
	}
	if err := money.CheckNonNegative(account.Balance); err != nil {
		return fmt.Errorf("%w: balance: %v", ErrInvalidAccount, err)
	}
	for _, movement := range account.Movements {
		if !movement.Type.Valid() {
			return fmt.Errorf("%w: movement %s", ErrInvalidMovementType, movement.ID)
		}
		if err := money.CheckPositive(movement.Amount); err != nil {
			return fmt.Errorf("%w: movement %s", ErrInvalidAmount, movement.ID)
		}
		if err := money.CheckNonNegative(movement.Balance); err != nil {
			if errors.Is(err, money.ErrOutOfRange) {
				return fmt.Errorf("%w: movement %s balance", ErrInvalidAmount, movement.ID)
			}
			return fmt.Errorf("%w: movement %s balance", ErrInsufficientFunds, movement.ID)
		}
	}
	for _, credit := range account.Credits {
		if !credit.Status.Valid() || credit.Amount.GreaterThan(credit.Limit) || !credit.Limit.IsPositive() || credit.Amount.IsNegative() || !money.InRange(credit.Limit) {
			return fmt.Errorf("%w: credit %s", ErrInvalidCredit, credit.ID)
		}
	}
	for _, loan := range account.Loans {
		if !loan.Status.Valid() || loan.Term <= 0 || !loan.Amount.IsPositive() || loan.RemainingBalance.IsNegative() ||
			!money.InRange(loan.Amount) || !money.InRange(loan.RemainingBalance) || !money.InRange(loan.MonthlyPayment) {
			return fmt.Errorf("%w: loan %s", ErrInvalidLoan, loan.ID)
		}
	}
	return nil
}

// storedTime drops what a timestamptz column cannot keep, so that ordering
// decided here survives a round trip.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
