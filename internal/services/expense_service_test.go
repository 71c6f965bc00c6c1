package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/storage/memory"
)

func TestNewExpenseService(t *testing.T) {
	service := NewExpenseService(memory.New(), nil, nil)

	if service == nil {
		t.Fatal("NewExpenseService should return a non-nil service")
	}
	if service.publisher != nil {
		t.Error("publisher should stay nil when none is given")
	}
}

func TestExpenseService_CreateExpense(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e := f.create(t, CreateExpenseInput{
		Name:        "  Internet ",
		Description: "Fibra",
		Amount:      decimal.RequireFromString("89.90"),
		DueDay:      15,
		StartDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Category:    "Serviços",
	})
	if e.ID == "" || e.OwnerID != testUser || e.Name != "Internet" || e.Status != core.StatusActive {
		t.Fatalf("created = %+v", e)
	}
	if p, _ := f.store.GetPayment(ctx, e.ID, "2024-03"); p != nil {
		t.Fatal("no payment expected without the paid flag")
	}
	if has, _ := f.expenses.HasAny(ctx, testUser); !has {
		t.Fatal("HasAny should be true")
	}
	if has, _ := f.expenses.HasAny(ctx, "nobody"); has {
		t.Fatal("HasAny should be false for another user")
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != amqp.EventExpenseCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestExpenseService_CreatePaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := rent()
	in.StartDate = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	in.Paid = true

	e := f.create(t, in)
	p, _ := f.store.GetPayment(ctx, e.ID, "2024-05")
	if p == nil {
		t.Fatal("start month should be paid")
	}
	if !p.Amount.Equal(e.Amount) || p.Method != "manual" || p.Note != "Marcado como pago na criação" {
		t.Fatalf("payment = %+v", p)
	}
	view, _ := f.expenses.ResolveMonth(ctx, testUser, e.ID, "2024-05")
	if view.Status != core.MonthPaid {
		t.Fatalf("status = %s, want paid", view.Status)
	}
}

func TestExpenseService_CreateValidation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, -1, 0)

	tests := []struct {
		name   string
		mutate func(*CreateExpenseInput)
		want   error
	}{
		{"short name", func(in *CreateExpenseInput) { in.Name = "A" }, core.ErrNameTooShort},
		{"zero amount", func(in *CreateExpenseInput) { in.Amount = decimal.Zero }, core.ErrInvalidAmount},
		{"due day zero", func(in *CreateExpenseInput) { in.DueDay = 0 }, core.ErrInvalidDueDay},
		{"due day 32", func(in *CreateExpenseInput) { in.DueDay = 32 }, core.ErrInvalidDueDay},
		{"no start", func(in *CreateExpenseInput) { in.StartDate = time.Time{} }, core.ErrMissingStart},
		{"end before start", func(in *CreateExpenseInput) { in.EndDate = &before }, core.ErrEndBeforeStart},
		{"short category", func(in *CreateExpenseInput) { in.Category = " C " }, core.ErrCategoryTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := rent()
			tt.mutate(&in)
			_, err := f.expenses.CreateExpense(context.Background(), testUser, in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if has, _ := f.expenses.HasAny(context.Background(), testUser); has {
				t.Fatal("invalid expense must not be stored")
			}
		})
	}
}

func TestExpenseService_ListVariantsChecksOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := f.create(t, rent())

	if _, err := f.expenses.ListVariants(ctx, "intruder", base.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	vs, err := f.expenses.ListVariants(ctx, testUser, base.ID)
	if err != nil || len(vs) != 0 {
		t.Fatalf("ListVariants = %v, %v", vs, err)
	}
}

type closingPublisher struct {
	recordingPublisher
	closed bool
	err    error
}

func (p *closingPublisher) Close() error {
	p.closed = true
	return p.err
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := NewExpenseService(memory.New(), nil, nil)
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &closingPublisher{}
		service := NewExpenseService(memory.New(), pub, nil)
		if err := service.Close(); err != nil {
			t.Fatal(err)
		}
		if !pub.closed {
			t.Fatal("publisher not closed")
		}
	})

	t.Run("reports publisher error", func(t *testing.T) {
		pub := &closingPublisher{err: errors.New("boom")}
		service := NewExpenseService(memory.New(), pub, nil)
		if err := service.Close(); err == nil {
			t.Fatal("expected close error")
		}
	})
}
