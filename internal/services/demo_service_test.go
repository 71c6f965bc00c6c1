package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"despesas/internal/auth"
	"despesas/internal/core"
	"despesas/internal/storage/memory"
)

func newDemoService(t *testing.T, cfg DemoConfig) (*DemoService, *memory.Store) {
	t.Helper()
	store := memory.New()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	users := NewUserService(store, tokens, "")
	return NewDemoService(store, users, cfg, fixedClock), store
}

func TestDemoDisabled(t *testing.T) {
	svc, _ := newDemoService(t, DemoConfig{Email: "demo@example.com"})
	if _, err := svc.Credentials(); !errors.Is(err, ErrDemoDisabled) {
		t.Fatalf("credentials: got %v", err)
	}
	if _, err := svc.Reset(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("reset: got %v", err)
	}
}

func TestDemoInitializeSeedsData(t *testing.T) {
	ctx := context.Background()
	svc, store := newDemoService(t, DemoConfig{Email: "demo@example.com", Password: "demo123"})

	u, res, err := svc.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if u.Name != demoUserName {
		t.Fatalf("user = %+v", u)
	}
	// Previous month all paid, current month every other expense.
	if res.Expenses != 12 || res.Payments != 18 {
		t.Fatalf("result = %+v", res)
	}

	expenses := NewExpenseService(store, nil, fixedClock)
	jul, err := expenses.ListEffectiveMonth(ctx, u.ID, "2024-07")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range jul {
		if v.Status != core.MonthPaid {
			t.Fatalf("%s should be paid in July", v.Name)
		}
	}
	aug, _ := expenses.ListEffectiveMonth(ctx, u.ID, "2024-08")
	if len(aug) != 12 {
		t.Fatalf("august has %d views", len(aug))
	}
	for i, v := range aug {
		if paid := v.Status == core.MonthPaid; paid != (i%2 == 0) {
			t.Fatalf("%s (index %d) paid = %v", v.Name, i, paid)
		}
	}

	// A second reset replaces rather than duplicates.
	if _, err := svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	ids, _ := store.ListExpenseIDs(ctx, u.ID)
	if len(ids) != 12 {
		t.Fatalf("after second reset: %d expenses", len(ids))
	}

	creds, err := svc.Credentials()
	if err != nil || creds.Password != "demo123" {
		t.Fatalf("credentials = %+v, %v", creds, err)
	}
}

func TestDemoResetCreatesMissingUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newDemoService(t, DemoConfig{Email: "Demo@Example.com", Password: "demo123"})

	res, err := svc.Reset(ctx)
	if err != nil {
		t.Fatalf("reset on empty store: %v", err)
	}
	u, err := store.GetUserByEmail(ctx, "demo@example.com")
	if err != nil {
		t.Fatalf("demo user not created: %v", err)
	}
	if res.UserID != u.ID || res.Expenses != len(demoExpenses) {
		t.Fatalf("reset result = %+v", res)
	}
}
