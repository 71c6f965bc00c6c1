package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleExpense(owner, name string, start time.Time) *core.Expense {
	return &core.Expense{
		OwnerID:   owner,
		Name:      name,
		Amount:    decimal.RequireFromString("1200.50"),
		DueDay:    5,
		StartDate: start,
		Category:  "Moradia",
	}
}

func TestSQLiteExpenseLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := sampleExpense("u1", "Aluguel", jan)
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" || e.Status != core.StatusActive {
		t.Fatalf("create did not fill defaults: %+v", e)
	}

	got, err := repo.GetExpense(ctx, "u1", e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(e.Amount) || !got.StartDate.Equal(jan) || got.EndDate != nil {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := repo.GetExpense(ctx, "someone-else", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign owner should see not found, got %v", err)
	}

	end := time.Date(2024, 6, 30, 23, 59, 59, 999e6, time.UTC)
	got.EndDate = &end
	if err := repo.UpdateExpense(ctx, &got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetExpense(ctx, "u1", e.ID)
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Fatalf("end date not persisted: %v", got.EndDate)
	}

	has, err := repo.HasAnyExpense(ctx, "u1")
	if err != nil || !has {
		t.Fatalf("HasAnyExpense = %v, %v", has, err)
	}
	if err := repo.DeleteExpense(ctx, "u1", e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteExpense(ctx, "u1", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	if has, _ := repo.HasAnyExpense(ctx, "u1"); has {
		t.Fatal("no expenses expected after delete")
	}
}

func TestSQLiteListActiveExpensesKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	names := []string{"Zeta", "Alpha", "Mid"}
	for _, n := range names {
		if err := repo.CreateExpense(ctx, sampleExpense("u1", n, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))); err != nil {
			t.Fatal(err)
		}
	}
	late := sampleExpense("u1", "Later", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	if err := repo.CreateExpense(ctx, late); err != nil {
		t.Fatal(err)
	}
	endedEarly := sampleExpense("u1", "Ended", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	end := core.MustParseMonth("2024-07").LastInstant()
	endedEarly.EndDate = &end
	if err := repo.CreateExpense(ctx, endedEarly); err != nil {
		t.Fatal(err)
	}

	m := core.MustParseMonth("2024-08")
	list, err := repo.ListActiveExpenses(ctx, "u1", m.LastInstant(), m.AddMonths(1).FirstDay())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(list))
	}
	for i, n := range names {
		if list[i].Name != n {
			t.Fatalf("position %d: got %s, want %s", i, list[i].Name, n)
		}
	}
}

func TestSQLiteUpsertVariantMerges(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	amount := decimal.NewFromInt(1400)
	v, err := repo.UpsertVariant(ctx, "e1", "2024-08", core.VariantPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	cat := "Casa"
	v2, err := repo.UpsertVariant(ctx, "e1", "2024-08", core.VariantPatch{Category: &cat})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if v2.ID != v.ID {
		t.Fatalf("upsert created a second variant: %s vs %s", v.ID, v2.ID)
	}
	if v2.Amount == nil || !v2.Amount.Equal(amount) || v2.Category == nil || *v2.Category != "Casa" {
		t.Fatalf("merge lost fields: %+v", v2)
	}
	if v2.DueDay != nil {
		t.Fatalf("unset field should stay nil, got %v", *v2.DueDay)
	}

	if _, err := repo.UpsertVariant(ctx, "e1", "2024-09", core.VariantPatch{}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpsertVariant(ctx, "e2", "2024-08", core.VariantPatch{Amount: &amount}); err != nil {
		t.Fatal(err)
	}

	all, _ := repo.ListVariants(ctx, "e1")
	if len(all) != 2 || all[0].Month != "2024-08" || all[1].Month != "2024-09" {
		t.Fatalf("ListVariants = %+v", all)
	}
	month, _ := repo.ListVariantsForMonth(ctx, []string{"e1", "e2", "e3"}, "2024-08")
	if len(month) != 2 {
		t.Fatalf("ListVariantsForMonth = %d variants", len(month))
	}

	n, err := repo.DeleteVariantsFrom(ctx, "e1", "2024-09")
	if err != nil || n != 1 {
		t.Fatalf("DeleteVariantsFrom = %d, %v", n, err)
	}
	if v, _ := repo.GetVariant(ctx, "e1", "2024-08"); v == nil {
		t.Fatal("earlier month must survive")
	}
	if n, _ := repo.DeleteVariants(ctx, "e1"); n != 1 {
		t.Fatalf("DeleteVariants = %d", n)
	}
}

func TestSQLitePaymentUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := &core.Payment{
		ExpenseID: "e1",
		Month:     "2024-08",
		Amount:    decimal.NewFromInt(1200),
		PaidAt:    time.Date(2024, 8, 3, 10, 0, 0, 0, time.UTC),
		Method:    "pix",
		Status:    core.PaymentConfirmed,
	}
	if err := repo.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *p
	dup.ID = ""
	if err := repo.CreatePayment(ctx, &dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := repo.GetPayment(ctx, "e1", "2024-08")
	if err != nil || got == nil || got.Method != "pix" || !got.PaidAt.Equal(p.PaidAt) {
		t.Fatalf("GetPayment = %+v, %v", got, err)
	}
	if none, err := repo.GetPayment(ctx, "e1", "2024-09"); none != nil || err != nil {
		t.Fatalf("missing payment should be nil, nil; got %+v, %v", none, err)
	}

	if err := repo.DeletePayment(ctx, "e1", "2024-08"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeletePayment(ctx, "e1", "2024-08"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := &core.User{Name: "Ana", Email: "Ana@Example.com", PasswordHash: "hash"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != core.RoleUser || u.Email != "ana@example.com" {
		t.Fatalf("defaults not applied: %+v", u)
	}
	if err := repo.CreateUser(ctx, &core.User{Name: "Other", Email: "ana@example.com", PasswordHash: "x"}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	got, err := repo.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
