package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLatestMovementByDate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	account := Account{Movements: []Movement{
		{ID: "new", Date: base.Add(2 * time.Hour), Balance: decimal.NewFromInt(30)},
		{ID: "old", Date: base, Balance: decimal.NewFromInt(10)},
		{ID: "mid", Date: base.Add(time.Hour), Balance: decimal.NewFromInt(20)},
	}}
	latest, ok := account.LatestMovement()
	if !ok || latest.ID != "new" {
		t.Fatalf("expected newest movement, got %#v", latest)
	}
	if !account.LedgerBalance().Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected ledger balance %s", account.LedgerBalance())
	}
}

func TestLedgerBalanceWithoutMovements(t *testing.T) {
	if !(Account{}).LedgerBalance().IsZero() {
		t.Fatalf("expected zero balance")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	original := Account{Movements: make([]Movement, 1, 4)}
	clone := original.Clone()
	clone.Movements = append(clone.Movements, Movement{ID: "extra"})
	clone.Movements[0].ID = "changed"
	if original.Movements[0].ID != "" {
		t.Fatalf("clone mutated original movement")
	}
	if len(original.Movements[:cap(original.Movements)]) > 1 && original.Movements[:2][1].ID == "extra" {
		t.Fatalf("clone appended into original backing array")
	}
}

func TestEnums(t *testing.T) {
	if !MovementTransfer.Debit() || MovementDeposit.Debit() {
		t.Fatalf("unexpected debit classification")
	}
	if MovementType("refund").Valid() || Role("root").Valid() {
		t.Fatalf("unknown values must be invalid")
	}
	if !CreditOverdue.Valid() || !LoanDefaulted.Valid() {
		t.Fatalf("known statuses must be valid")
	}
}

func TestSortMovementsNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	account := Account{Movements: []Movement{
		{ID: "a", Date: base},
		{ID: "c", Date: base.Add(2 * time.Minute)},
		{ID: "b", Date: base.Add(time.Minute)},
	}}
	account.SortMovements()
	if account.Movements[0].ID != "c" || account.Movements[2].ID != "a" {
		t.Fatalf("unexpected order: %#v", account.Movements)
	}
}
