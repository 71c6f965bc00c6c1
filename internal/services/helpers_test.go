package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/storage/memory"
)

const testUser = "user-1"

var fixedNow = time.Date(2024, 8, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	fail   bool
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, evt *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store    *memory.Store
	pub      *recordingPublisher
	expenses *ExpenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	return &fixture{
		store:    store,
		pub:      pub,
		expenses: NewExpenseService(store, pub, fixedClock),
	}
}

func (f *fixture) create(t *testing.T, in CreateExpenseInput) core.Expense {
	t.Helper()
	e, err := f.expenses.CreateExpense(context.Background(), testUser, in)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

// rent is open-ended: 1200 due on the 5th since January 2024.
func rent() CreateExpenseInput {
	return CreateExpenseInput{
		Name:      "Aluguel",
		Amount:    decimal.NewFromInt(1200),
		DueDay:    5,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Category:  "Casa",
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptr[T any](v T) *T { return &v }
