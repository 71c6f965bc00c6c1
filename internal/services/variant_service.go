package services

import (
	"context"
	"fmt"
	"log/slog"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/storage"
)

// SpreadOutcome tells whether a month's variant was created or merged into.
type SpreadOutcome struct {
	Month   string `json:"month"`
	Created bool   `json:"created"`
}

// VariantService edits per-month overrides directly, outside of a scoped edit.
type VariantService struct {
	store     storage.RecordStore
	publisher EventPublisher
	now       Clock
}

func NewVariantService(store storage.RecordStore, publisher EventPublisher, now Clock) *VariantService {
	if now == nil {
		now = systemClock
	}
	return &VariantService{store: store, publisher: publisher, now: now}
}

// SaveMonthVariant merges patch into the variant of month.
func (s *VariantService) SaveMonthVariant(ctx context.Context, userID, expenseID, month string, patch core.VariantPatch) (core.Variant, error) {
	mon, _, err := s.check(ctx, userID, expenseID, month, patch)
	if err != nil {
		return core.Variant{}, err
	}
	v, err := s.store.UpsertVariant(ctx, expenseID, mon.String(), patch)
	if err != nil {
		return core.Variant{}, fmt.Errorf("upsert variant %s: %w", mon, err)
	}
	s.announce(ctx, userID, expenseID, []string{mon.String()})
	return v, nil
}

// SpreadFromMonth merges patch into every month from month to the
// expense's end month. Open-ended expenses stop VariantSpreadMonths months
// after the current month.
func (s *VariantService) SpreadFromMonth(ctx context.Context, userID, expenseID, month string, patch core.VariantPatch) ([]SpreadOutcome, error) {
	mon, base, err := s.check(ctx, userID, expenseID, month, patch)
	if err != nil {
		return nil, err
	}

	end := base.EndMonth()
	if end == nil {
		limit := core.MonthOf(s.now()).AddMonths(core.VariantSpreadMonths)
		end = &limit
	}

	months := core.MonthRange(mon, end, core.VariantSpreadMonths)
	out := make([]SpreadOutcome, 0, len(months))
	for _, m := range months {
		token := m.String()
		existing, err := s.store.GetVariant(ctx, expenseID, token)
		if err != nil {
			return out, fmt.Errorf("load variant %s: %w", token, err)
		}
		if _, err := s.store.UpsertVariant(ctx, expenseID, token, patch); err != nil {
			return out, fmt.Errorf("upsert variant %s: %w", token, err)
		}
		out = append(out, SpreadOutcome{Month: token, Created: existing == nil})
	}

	tokens := make([]string, len(out))
	for i, o := range out {
		tokens[i] = o.Month
	}
	s.announce(ctx, userID, expenseID, tokens)

	slog.InfoContext(ctx, "Variant spread across months",
		"expense_id", expenseID,
		"from", mon.String(),
		"months", len(out))
	return out, nil
}

func (s *VariantService) check(ctx context.Context, userID, expenseID, month string, patch core.VariantPatch) (core.Month, core.Expense, error) {
	mon, err := core.ParseMonth(month)
	if err != nil {
		return core.Month{}, core.Expense{}, err
	}
	if patch.IsEmpty() {
		return core.Month{}, core.Expense{}, fmt.Errorf("%w: variant has no fields", core.ErrValidation)
	}
	if err := patch.Validate(); err != nil {
		return core.Month{}, core.Expense{}, err
	}
	base, err := s.store.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return core.Month{}, core.Expense{}, err
	}
	return mon, base, nil
}

func (s *VariantService) announce(ctx context.Context, userID, expenseID string, months []string) {
	evt := amqp.NewExpenseEvent(amqp.EventExpenseEdited, expenseID, userID)
	evt.Scope = string(core.ScopeOnly)
	if len(months) > 1 {
		evt.Scope = string(core.ScopeFuture)
	}
	evt.Months = months
	publish(ctx, s.publisher, evt)
}
