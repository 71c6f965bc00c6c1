package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"despesas/internal/core"
	"despesas/internal/storage"
)

// Materializer computes effective monthly views. Nothing it returns is
// persisted or cached.
type Materializer struct {
	store storage.RecordStore
	now   Clock
}

func NewMaterializer(store storage.RecordStore, now Clock) *Materializer {
	if now == nil {
		now = systemClock
	}
	return &Materializer{store: store, now: now}
}

// ResolveMonth returns the effective view of one expense in one month.
func (m *Materializer) ResolveMonth(ctx context.Context, userID, expenseID, month string) (core.EffectiveView, error) {
	mon, err := core.ParseMonth(month)
	if err != nil {
		return core.EffectiveView{}, err
	}
	base, err := m.store.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return core.EffectiveView{}, err
	}

	token := mon.String()
	var (
		variant *core.Variant
		payment *core.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := m.store.GetVariant(gctx, expenseID, token)
		if err != nil {
			return fmt.Errorf("load variant: %w", err)
		}
		variant = v
		return nil
	})
	g.Go(func() error {
		p, err := m.store.GetPayment(gctx, expenseID, token)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		payment = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.EffectiveView{}, err
	}

	return core.Materialize(base, variant, payment, mon, m.now()), nil
}

// ListMonth returns one view per active expense of userID covering month,
// in creation order. Variants and payments are fetched with one batched
// lookup each.
func (m *Materializer) ListMonth(ctx context.Context, userID, month string) ([]core.EffectiveView, error) {
	mon, err := core.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	bases, err := m.store.ListActiveExpenses(ctx, userID, mon.LastInstant(), mon.AddMonths(1).FirstDay())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if len(bases) == 0 {
		return []core.EffectiveView{}, nil
	}

	ids := make([]string, len(bases))
	for i, b := range bases {
		ids[i] = b.ID
	}

	token := mon.String()
	var (
		variants []core.Variant
		payments []core.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vs, err := m.store.ListVariantsForMonth(gctx, ids, token)
		if err != nil {
			return fmt.Errorf("load variants: %w", err)
		}
		variants = vs
		return nil
	})
	g.Go(func() error {
		ps, err := m.store.ListPaymentsForMonth(gctx, ids, token)
		if err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
		payments = ps
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	variantByID := make(map[string]*core.Variant, len(variants))
	for i := range variants {
		variantByID[variants[i].ExpenseID] = &variants[i]
	}
	paymentByID := make(map[string]*core.Payment, len(payments))
	for i := range payments {
		paymentByID[payments[i].ExpenseID] = &payments[i]
	}

	now := m.now()
	views := make([]core.EffectiveView, 0, len(bases))
	for _, b := range bases {
		views = append(views, core.Materialize(b, variantByID[b.ID], paymentByID[b.ID], mon, now))
	}
	return views, nil
}

// Summary materializes month and aggregates it.
func (m *Materializer) Summary(ctx context.Context, userID, month string) (core.MonthSummary, error) {
	views, err := m.ListMonth(ctx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.Summarize(month, views), nil
}
