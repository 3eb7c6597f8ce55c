package handlers

import (
	"strings"
	"time"

	"ledgerbank/internal/models"
	"ledgerbank/internal/money"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type accountResponse struct {
	ID            string             `json:"id"`
	AccountNumber string             `json:"accountNumber"`
	FullName      string             `json:"fullName"`
	Email         string             `json:"email"`
	Role          string             `json:"role"`
	Balance       string             `json:"balance"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Movements     []movementResponse `json:"movements"`
	Credits       []creditResponse   `json:"credits"`
	Loans         []loanResponse     `json:"loans"`
}

type movementResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Balance     string    `json:"balance"`
}

type creditResponse struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Limit        string `json:"limit"`
	InterestRate string `json:"interestRate"`
	DueDate      string `json:"dueDate"`
	Status       string `json:"status"`
}

type loanResponse struct {
	ID               string `json:"id"`
	Amount           string `json:"amount"`
	InterestRate     string `json:"interestRate"`
	Term             int    `json:"term"`
	MonthlyPayment   string `json:"monthlyPayment"`
	RemainingBalance string `json:"remainingBalance"`
	Status           string `json:"status"`
	StartDate        string `json:"startDate"`
}

func toAccountResponse(account models.Account) accountResponse {
	out := accountResponse{
		ID:            account.ID,
		AccountNumber: account.AccountNumber,
		FullName:      account.FullName,
		Email:         account.Email,
		Role:          string(account.Role),
		Balance:       money.Format(account.Balance),
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
		Movements:     make([]movementResponse, 0, len(account.Movements)),
		Credits:       make([]creditResponse, 0, len(account.Credits)),
		Loans:         make([]loanResponse, 0, len(account.Loans)),
	}
	for _, m := range account.Movements {
		out.Movements = append(out.Movements, movementResponse{
			ID:          m.ID,
			Type:        string(m.Type),
			Amount:      money.Format(m.Amount),
			Description: m.Description,
			Date:        m.Date,
			Balance:     money.Format(m.Balance),
		})
	}
	for _, c := range account.Credits {
		out.Credits = append(out.Credits, creditResponse{
			ID:           c.ID,
			Amount:       money.Format(c.Amount),
			Limit:        money.Format(c.Limit),
			InterestRate: money.Format(c.InterestRate),
			DueDate:      c.DueDate.Format(dateLayout),
			Status:       string(c.Status),
		})
	}
	for _, l := range account.Loans {
		out.Loans = append(out.Loans, loanResponse{
			ID:               l.ID,
			Amount:           money.Format(l.Amount),
			InterestRate:     money.Format(l.InterestRate),
			Term:             l.Term,
			MonthlyPayment:   money.Format(l.MonthlyPayment),
			RemainingBalance: money.Format(l.RemainingBalance),
			Status:           string(l.Status),
			StartDate:        l.StartDate.Format(dateLayout),
		})
	}
	return out
}

func toAccountResponses(accounts []models.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountResponse(account))
	}
	return out
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createAccountRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"omitempty,max=32"`
	FullName      string          `json:"fullName" validate:"required,max=200"`
	Email         string          `json:"email" validate:"required,email"`
	Password      string          `json:"password" validate:"required,min=6"`
	Role          string          `json:"role" validate:"omitempty,role"`
	Balance       decimal.Decimal `json:"balance" validate:"money_nonneg"`
}

type editProfileRequest struct {
	AccountNumber *string          `json:"accountNumber" validate:"omitempty,min=1,max=32"`
	FullName      *string          `json:"fullName" validate:"omitempty,min=1,max=200"`
	Email         *string          `json:"email" validate:"omitempty,email"`
	Password      *string          `json:"password" validate:"omitempty,min=6"`
	Role          *string          `json:"role" validate:"omitempty,role"`
	Balance       *decimal.Decimal `json:"balance" validate:"omitempty,money_nonneg"`
}

type movementPayload struct {
	ID          string          `json:"id"`
	Type        string          `json:"type" validate:"required,movement_type"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Description string          `json:"description" validate:"max=255"`
	Date        time.Time       `json:"date"`
	Balance     decimal.Decimal `json:"balance" validate:"money_nonneg"`
}

type creditPayload struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount" validate:"money_nonneg"`
	Limit        decimal.Decimal `json:"limit" validate:"money"`
	InterestRate decimal.Decimal `json:"interestRate" validate:"rate"`
	DueDate      string          `json:"dueDate" validate:"required"`
	Status       string          `json:"status" validate:"required,oneof=active paid overdue"`
}

type loanPayload struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount" validate:"money"`
	InterestRate     decimal.Decimal `json:"interestRate" validate:"rate"`
	Term             int             `json:"term" validate:"gt=0,lte=600"`
	MonthlyPayment   decimal.Decimal `json:"monthlyPayment" validate:"money_nonneg"`
	RemainingBalance decimal.Decimal `json:"remainingBalance" validate:"money_nonneg"`
	Status           string          `json:"status" validate:"required,oneof=active paid defaulted"`
	StartDate        string          `json:"startDate"`
}

type replaceAccountRequest struct {
	AccountNumber string            `json:"accountNumber" validate:"required,max=32"`
	FullName      string            `json:"fullName" validate:"required,max=200"`
	Email         string            `json:"email" validate:"required,email"`
	Password      string            `json:"password" validate:"omitempty,min=6"`
	Role          string            `json:"role" validate:"required,role"`
	Balance       decimal.Decimal   `json:"balance" validate:"money_nonneg"`
	Movements     []movementPayload `json:"movements" validate:"dive"`
	Credits       []creditPayload   `json:"credits" validate:"dive"`
	Loans         []loanPayload     `json:"loans" validate:"dive"`
}

type movementRequest struct {
	Type        string          `json:"type" validate:"required,movement_type"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Description string          `json:"description" validate:"max=255"`
}

type creditRequest struct {
	Amount       decimal.Decimal `json:"amount" validate:"money"`
	Limit        decimal.Decimal `json:"limit" validate:"money"`
	InterestRate decimal.Decimal `json:"interestRate" validate:"rate"`
	DueDate      string          `json:"dueDate"`
}

type loanRequest struct {
	Amount       decimal.Decimal `json:"amount" validate:"money"`
	InterestRate decimal.Decimal `json:"interestRate" validate:"rate"`
	Term         int             `json:"term" validate:"gt=0,lte=600"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. An empty
// string yields nil.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (req replaceAccountRequest) toAccount(now time.Time) (models.Account, error) {
	account := models.Account{
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		FullName:      req.FullName,
		Email:         req.Email,
		Role:          models.Role(req.Role),
		Balance:       req.Balance,
		Movements:     make([]models.Movement, 0, len(req.Movements)),
		Credits:       make([]models.Credit, 0, len(req.Credits)),
		Loans:         make([]models.Loan, 0, len(req.Loans)),
	}
	for _, m := range req.Movements {
		date := m.Date
		if date.IsZero() {
			date = now
		}
		account.Movements = append(account.Movements, models.Movement{
			ID:          m.ID,
			Type:        models.MovementType(m.Type),
			Amount:      m.Amount,
			Description: m.Description,
			Date:        date.UTC(),
			Balance:     m.Balance,
		})
	}
	for _, c := range req.Credits {
		due, err := parseDate(c.DueDate)
		if err != nil || due == nil {
			return models.Account{}, errInvalidDate
		}
		account.Credits = append(account.Credits, models.Credit{
			ID:           c.ID,
			Amount:       c.Amount,
			Limit:        c.Limit,
			InterestRate: c.InterestRate,
			DueDate:      *due,
			Status:       models.CreditStatus(c.Status),
		})
	}
	for _, l := range req.Loans {
		start, err := parseDate(l.StartDate)
		if err != nil {
			return models.Account{}, errInvalidDate
		}
		startDate := now
		if start != nil {
			startDate = *start
		}
		account.Loans = append(account.Loans, models.Loan{
			ID:               l.ID,
			Amount:           l.Amount,
			InterestRate:     l.InterestRate,
			Term:             l.Term,
			MonthlyPayment:   l.MonthlyPayment,
			RemainingBalance: l.RemainingBalance,
			Status:           models.LoanStatus(l.Status),
			StartDate:        startDate,
		})
	}
	return account, nil
}
