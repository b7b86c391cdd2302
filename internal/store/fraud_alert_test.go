package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/fraudwatch/internal/model"
)

type alertFixture struct {
	alerts *FraudAlertStore
	users  *UserStore
	txs    *TransactionStore
}

func setupFraudAlertTestDB(t *testing.T) alertFixture {
	t.Helper()
	db := openTestDB(t)
	return alertFixture{
		alerts: NewFraudAlertStore(db),
		users:  NewUserStore(db),
		txs:    NewTransactionStore(db),
	}
}

func TestFraudAlertCreateDefaults(t *testing.T) {
	f := setupFraudAlertTestDB(t)
	ctx := context.Background()

	u, _ := f.users.Create(ctx, "bob@example.com", "user", "Bob", "Jones")
	a, err := f.alerts.Create(ctx, model.FraudAlert{UserID: u.ID})
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	if a.Status != model.AlertStatusPending {
		t.Errorf("status = %q, want %q", a.Status, model.AlertStatusPending)
	}
	if a.TransactionID != nil {
		t.Error("expected nil transaction id")
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestFraudAlertListWithContext(t *testing.T) {
	f := setupFraudAlertTestDB(t)
	ctx := context.Background()

	bob, _ := f.users.Create(ctx, "bob@example.com", "user", "Bob", "Jones")
	carol, _ := f.users.Create(ctx, "carol@example.com", "user", "Carol", "")
	tx, _ := f.txs.Create(ctx, bob.ID, "TX-1001", 250.75)

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	older, _ := f.alerts.Create(ctx, model.FraudAlert{UserID: bob.ID, TransactionID: &tx.ID, CreatedAt: base})
	newest, _ := f.alerts.Create(ctx, model.FraudAlert{UserID: carol.ID, CreatedAt: base.Add(2 * time.Hour)})
	middle, _ := f.alerts.Create(ctx, model.FraudAlert{UserID: bob.ID, CreatedAt: base.Add(time.Hour), Status: model.AlertStatusInvestigating})

	list, err := f.alerts.ListWithContext(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}

	wantOrder := []int64{newest.ID, middle.ID, older.ID}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Errorf("list[%d].ID = %d, want %d", i, list[i].ID, id)
		}
	}

	if list[0].UserName != "Carol" {
		t.Errorf("user_name = %q, want %q", list[0].UserName, "Carol")
	}
	if list[0].TransactionReference != nil || list[0].TransactionAmount != nil {
		t.Error("alert without transaction should have null transaction fields")
	}

	last := list[2]
	if last.UserName != "Bob Jones" {
		t.Errorf("user_name = %q, want %q", last.UserName, "Bob Jones")
	}
	if last.TransactionReference == nil || *last.TransactionReference != "TX-1001" {
		t.Errorf("transaction_reference = %v, want TX-1001", last.TransactionReference)
	}
	if last.TransactionAmount == nil || *last.TransactionAmount != 250.75 {
		t.Errorf("transaction_amount = %v, want 250.75", last.TransactionAmount)
	}
}

func TestFraudAlertListEmpty(t *testing.T) {
	f := setupFraudAlertTestDB(t)

	list, err := f.alerts.ListWithContext(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestFraudAlertSetStatus(t *testing.T) {
	f := setupFraudAlertTestDB(t)
	ctx := context.Background()

	u, _ := f.users.Create(ctx, "bob@example.com", "user", "Bob", "")
	a, _ := f.alerts.Create(ctx, model.FraudAlert{UserID: u.ID})

	updated, err := f.alerts.SetStatus(ctx, SetAlertStatus{ID: a.ID, Status: model.AlertStatusConfirmed})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated == nil {
		t.Fatal("expected updated alert")
	}
	if updated.Status != model.AlertStatusConfirmed {
		t.Errorf("status = %q, want %q", updated.Status, model.AlertStatusConfirmed)
	}
	if !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Error("created_at should not change on status update")
	}
}

func TestFraudAlertSetStatusNotFound(t *testing.T) {
	f := setupFraudAlertTestDB(t)

	updated, err := f.alerts.SetStatus(context.Background(), SetAlertStatus{ID: 42, Status: model.AlertStatusConfirmed})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated != nil {
		t.Error("expected nil for nonexistent alert")
	}
}

func TestFraudAlertSetStatusRejectsUnknownStatus(t *testing.T) {
	f := setupFraudAlertTestDB(t)
	ctx := context.Background()

	u, _ := f.users.Create(ctx, "bob@example.com", "user", "Bob", "")
	a, _ := f.alerts.Create(ctx, model.FraudAlert{UserID: u.ID})

	if _, err := f.alerts.SetStatus(ctx, SetAlertStatus{ID: a.ID, Status: "escalated"}); err == nil {
		t.Error("expected CHECK violation for unknown status")
	}
}
