package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"ledgerbank/internal/auth"
	"ledgerbank/internal/config"
	"ledgerbank/internal/logging"
	"ledgerbank/internal/models"
	"ledgerbank/internal/services"
	"ledgerbank/internal/websocket"

	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

type stubService struct {
	authenticateFn   func(ctx context.Context, email, password string) (models.Account, error)
	listAccountsFn   func(ctx context.Context) ([]models.Account, error)
	getAccountFn     func(ctx context.Context, accountID string) (models.Account, error)
	createAccountFn  func(ctx context.Context, profile services.Profile) (models.Account, error)
	replaceAccountFn func(ctx context.Context, accountID string, replacement models.Account, password string) (models.Account, error)
	editProfileFn    func(ctx context.Context, accountID string, changes services.ProfileChanges) (models.Account, error)
	deleteAccountFn  func(ctx context.Context, accountID string) error
	recordMovementFn func(ctx context.Context, accountID string, movementType models.MovementType, amount decimal.Decimal, description string) (models.Account, error)
	assignCreditFn   func(ctx context.Context, accountID string, amount, limit, interestRate decimal.Decimal, dueDate *time.Time) (models.Account, error)
	assignLoanFn     func(ctx context.Context, accountID string, amount, interestRate decimal.Decimal, termMonths int) (models.Account, error)
}

func (s stubService) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	return s.authenticateFn(ctx, email, password)
}

func (s stubService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.listAccountsFn(ctx)
}

func (s stubService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return s.getAccountFn(ctx, accountID)
}

func (s stubService) CreateAccount(ctx context.Context, profile services.Profile) (models.Account, error) {
	return s.createAccountFn(ctx, profile)
}

func (s stubService) ReplaceAccount(ctx context.Context, accountID string, replacement models.Account, password string) (models.Account, error) {
	return s.replaceAccountFn(ctx, accountID, replacement, password)
}

func (s stubService) EditProfile(ctx context.Context, accountID string, changes services.ProfileChanges) (models.Account, error) {
	return s.editProfileFn(ctx, accountID, changes)
}

func (s stubService) DeleteAccount(ctx context.Context, accountID string) error {
	return s.deleteAccountFn(ctx, accountID)
}

func (s stubService) RecordMovement(ctx context.Context, accountID string, movementType models.MovementType, amount decimal.Decimal, description string) (models.Account, error) {
	return s.recordMovementFn(ctx, accountID, movementType, amount, description)
}

func (s stubService) AssignCredit(ctx context.Context, accountID string, amount, limit, interestRate decimal.Decimal, dueDate *time.Time) (models.Account, error) {
	return s.assignCreditFn(ctx, accountID, amount, limit, interestRate, dueDate)
}

func (s stubService) AssignLoan(ctx context.Context, accountID string, amount, interestRate decimal.Decimal, termMonths int) (models.Account, error) {
	return s.assignLoanFn(ctx, accountID, amount, interestRate, termMonths)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		TokenTTL:       time.Hour,
		AllowedOrigins: "*",
		RequestTimeout: 5 * time.Second,
	}
}

func newTestHandler(service AccountService) (*Handler, *websocket.Hub) {
	hub := websocket.NewHub()
	return New(testConfig(), service, websocket.NewServer(hub, "*", logging.Discard()), logging.Discard()), hub
}

func tokenFor(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, string(role), time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, h *Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func sampleAccount(id string) models.Account {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.Account{
		ID:            id,
		AccountNumber: "4001-1234-56789012",
		FullName:      "Ada Lovelace",
		Email:         "ada@example.com",
		Role:          models.RoleUser,
		Balance:       decimal.RequireFromString("70"),
		Movements: []models.Movement{
			{ID: "m1", Type: models.MovementDeposit, Amount: decimal.RequireFromString("100"), Date: base, Balance: decimal.RequireFromString("100")},
			{ID: "m2", Type: models.MovementWithdrawal, Amount: decimal.RequireFromString("30"), Date: base.Add(time.Hour), Balance: decimal.RequireFromString("70")},
		},
	}
}

func serviceError(kind services.Kind, reason string) error {
	return &services.Error{Kind: kind, Reason: reason}
}
