package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
	"despesas/internal/storage"
)

var _ storage.Store = (*Store)(nil)

func TestMemoryExpenseOwnership(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := &core.Expense{OwnerID: "u1", Name: "Aluguel", Amount: decimal.NewFromInt(1200), DueDay: 5,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Category: "Moradia"}
	if err := s.CreateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetExpense(ctx, "u2", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	if err := s.DeleteExpense(ctx, "u2", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	got, err := s.GetExpense(ctx, "u1", e.ID)
	if err != nil || got.Name != "Aluguel" {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestMemoryVariantUpsertAndRangeDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	amount := decimal.NewFromInt(1400)
	for _, m := range []string{"2024-10", "2024-08", "2024-09"} {
		if _, err := s.UpsertVariant(ctx, "e1", m, core.VariantPatch{Amount: &amount}); err != nil {
			t.Fatal(err)
		}
	}
	cat := "Casa"
	v, _ := s.UpsertVariant(ctx, "e1", "2024-08", core.VariantPatch{Category: &cat})
	if v.Amount == nil || v.Category == nil {
		t.Fatalf("merge lost fields: %+v", v)
	}

	list, _ := s.ListVariants(ctx, "e1")
	if len(list) != 3 || list[0].Month != "2024-08" || list[2].Month != "2024-10" {
		t.Fatalf("expected 3 sorted variants, got %+v", list)
	}

	n, _ := s.DeleteVariantsFrom(ctx, "e1", "2024-09")
	if n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	list, _ = s.ListVariants(ctx, "e1")
	if len(list) != 1 {
		t.Fatalf("expected 1 variant left, got %d", len(list))
	}
}

func TestMemoryPaymentConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &core.Payment{ExpenseID: "e1", Month: "2024-08", Amount: decimal.NewFromInt(10)}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePayment(ctx, &core.Payment{ExpenseID: "e1", Month: "2024-08"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.DeletePayment(ctx, "e1", "2024-09"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateUser(ctx, &core.User{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, &core.User{Name: "Ana 2", Email: "ANA@example.com"}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}
