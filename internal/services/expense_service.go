package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/amqp"
	"despesas/internal/core"
	applog "despesas/internal/log"
	"despesas/internal/storage"
)

// CreateExpenseInput carries the fields of a new expense. Paid records a
// payment for the start month right away.
type CreateExpenseInput struct {
	Name        string
	Description string
	Amount      decimal.Decimal
	DueDay      int
	StartDate   time.Time
	EndDate     *time.Time
	Category    string
	Paid        bool
}

// ExpenseService is the entry point for expense operations. It persists
// through the store and announces changes on the optional publisher.
type ExpenseService struct {
	storage   storage.RecordStore
	publisher EventPublisher

	materializer *Materializer
	scopes       *ScopeEngine
	ledger       *PaymentLedger
}

func NewExpenseService(store storage.RecordStore, publisher EventPublisher, now Clock) *ExpenseService {
	ledger := NewPaymentLedger(store, publisher, now)
	return &ExpenseService{
		storage:      store,
		publisher:    publisher,
		materializer: NewMaterializer(store, now),
		scopes:       NewScopeEngine(store, ledger, publisher),
		ledger:       ledger,
	}
}

// CreateExpense validates and saves a new expense owned by userID.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID string, in CreateExpenseInput) (core.Expense, error) {
	e := core.Expense{
		OwnerID:     userID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		DueDay:      in.DueDay,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Category:    strings.TrimSpace(in.Category),
		Status:      core.StatusActive,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.storage.CreateExpense(ctx, &e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	if in.Paid {
		_, err := s.ledger.ensurePaid(ctx, e.ID, e.StartMonth().String(), PaymentInput{
			Amount: e.Amount,
			Method: methodManual,
			Note:   noteOnCreate,
		})
		if err != nil {
			// The expense exists; report the failed payment without undoing it.
			return e, fmt.Errorf("record initial payment: %w", err)
		}
	}

	evt := amqp.NewExpenseEvent(amqp.EventExpenseCreated, e.ID, userID)
	evt.Name = e.Name
	evt.Amount = core.FormatAmount(e.Amount)
	evt.Months = []string{e.StartMonth().String()}
	publish(ctx, s.publisher, evt)

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseCreated(ctx, userID, e.ID, e.StartMonth().String(), in.Paid)
	return e, nil
}

// ListEffectiveMonth returns the effective views of userID's expenses in month.
func (s *ExpenseService) ListEffectiveMonth(ctx context.Context, userID, month string) ([]core.EffectiveView, error) {
	return s.materializer.ListMonth(ctx, userID, month)
}

// MonthSummary totals the effective views of month.
func (s *ExpenseService) MonthSummary(ctx context.Context, userID, month string) (core.MonthSummary, error) {
	return s.materializer.Summary(ctx, userID, month)
}

// ResolveMonth returns one expense as it applies to month.
func (s *ExpenseService) ResolveMonth(ctx context.Context, userID, expenseID, month string) (core.EffectiveView, error) {
	return s.materializer.ResolveMonth(ctx, userID, expenseID, month)
}

func (s *ExpenseService) EditWithScope(ctx context.Context, userID, expenseID, scope, month string, updates core.ExpenseUpdates) (EditResult, error) {
	return s.scopes.EditWithScope(ctx, userID, expenseID, scope, month, updates)
}

func (s *ExpenseService) DeleteWithScope(ctx context.Context, userID, expenseID, scope, month string) (DeleteResult, error) {
	return s.scopes.DeleteWithScope(ctx, userID, expenseID, scope, month)
}

func (s *ExpenseService) MarkPaid(ctx context.Context, userID, expenseID, month string, in PaymentInput) (core.Payment, error) {
	return s.ledger.MarkPaid(ctx, userID, expenseID, month, in)
}

func (s *ExpenseService) UnmarkPaid(ctx context.Context, userID, expenseID, month string) error {
	return s.ledger.UnmarkPaid(ctx, userID, expenseID, month)
}

// HasAny reports whether userID has created any expense.
func (s *ExpenseService) HasAny(ctx context.Context, userID string) (bool, error) {
	return s.storage.HasAnyExpense(ctx, userID)
}

// ListVariants returns the overrides of an expense owned by userID, by month.
func (s *ExpenseService) ListVariants(ctx context.Context, userID, expenseID string) ([]core.Variant, error) {
	if _, err := s.storage.GetExpense(ctx, userID, expenseID); err != nil {
		return nil, err
	}
	return s.storage.ListVariants(ctx, expenseID)
}

// Close closes the publisher when it can be closed. The store is owned by
// whoever built it.
func (s *ExpenseService) Close() error {
	c, ok := s.publisher.(interface{ Close() error })
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close expense service: amqp: %w", err)
	}
	return nil
}
