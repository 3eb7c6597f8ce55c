package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type MovementType string

const (
	MovementDeposit    MovementType = "deposit"
	MovementWithdrawal MovementType = "withdrawal"
	MovementTransfer   MovementType = "transfer"
)

func (t MovementType) Valid() bool {
	return t == MovementDeposit || t == MovementWithdrawal || t == MovementTransfer
}

// Debit reports whether the movement takes money out of the account.
func (t MovementType) Debit() bool {
	return t == MovementWithdrawal || t == MovementTransfer
}

type CreditStatus string

const (
	CreditActive  CreditStatus = "active"
	CreditPaid    CreditStatus = "paid"
	CreditOverdue CreditStatus = "overdue"
)

func (s CreditStatus) Valid() bool {
	return s == CreditActive || s == CreditPaid || s == CreditOverdue
}

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanPaid      LoanStatus = "paid"
	LoanDefaulted LoanStatus = "defaulted"
)

func (s LoanStatus) Valid() bool {
	return s == LoanActive || s == LoanPaid || s == LoanDefaulted
}

type Account struct {
	ID            string          `db:"id" json:"id"`
	AccountNumber string          `db:"account_number" json:"accountNumber"`
	FullName      string          `db:"full_name" json:"fullName"`
	Email         string          `db:"email" json:"email"`
	PasswordHash  string          `db:"password_hash" json:"-"`
	Role          Role            `db:"role" json:"role"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
	Movements     []Movement      `db:"-" json:"movements"`
	Credits       []Credit        `db:"-" json:"credits"`
	Loans         []Loan          `db:"-" json:"loans"`
}

// LatestMovement returns the movement with the greatest date. Ties keep the
// one that appears last in the slice.
func (a Account) LatestMovement() (Movement, bool) {
	var latest Movement
	found := false
	for _, movement := range a.Movements {
		if !found || !movement.Date.Before(latest.Date) {
			latest = movement
			found = true
		}
	}
	return latest, found
}

// LedgerBalance is the balance implied by the movement history.
func (a Account) LedgerBalance() decimal.Decimal {
	latest, ok := a.LatestMovement()
	if !ok {
		return decimal.Zero
	}
	return latest.Balance
}

// Clone copies the child slices so that rules can append without aliasing
// the caller's backing arrays.
func (a Account) Clone() Account {
	out := a
	out.Movements = append([]Movement(nil), a.Movements...)
	out.Credits = append([]Credit(nil), a.Credits...)
	out.Loans = append([]Loan(nil), a.Loans...)
	return out
}

type Movement struct {
	ID          string          `db:"id" json:"id"`
	AccountID   string          `db:"user_id" json:"-"`
	Type        MovementType    `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	Date        time.Time       `db:"date" json:"date"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
}

type Credit struct {
	ID           string          `db:"id" json:"id"`
	AccountID    string          `db:"user_id" json:"-"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Limit        decimal.Decimal `db:"credit_limit" json:"limit"`
	InterestRate decimal.Decimal `db:"interest_rate" json:"interestRate"`
	DueDate      time.Time       `db:"due_date" json:"dueDate"`
	Status       CreditStatus    `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

type Loan struct {
	ID               string          `db:"id" json:"id"`
	AccountID        string          `db:"user_id" json:"-"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	InterestRate     decimal.Decimal `db:"interest_rate" json:"interestRate"`
	Term             int             `db:"term" json:"term"`
	MonthlyPayment   decimal.Decimal `db:"monthly_payment" json:"monthlyPayment"`
	RemainingBalance decimal.Decimal `db:"remaining_balance" json:"remainingBalance"`
	Status           LoanStatus      `db:"status" json:"status"`
	StartDate        time.Time       `db:"start_date" json:"startDate"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}

// SortMovements orders the history newest first, the order the API returns.
func (a *Account) SortMovements() {
	sort.SliceStable(a.Movements, func(i, j int) bool {
		return a.Movements[i].Date.After(a.Movements[j].Date)
	})
}
