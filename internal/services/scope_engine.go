package services

import (
	"context"
	"fmt"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/core"
	applog "despesas/internal/log"
	"despesas/internal/storage"
)

// EditResult reports what a scoped edit touched. Exactly one of Variant,
// TouchedMonths or Expense is set, depending on the scope.
type EditResult struct {
	Scope          core.Scope
	Variant        *core.Variant
	TouchedMonths  []string
	Expense        *core.Expense
	VariantsReset  int64
	PaymentCreated bool
	PaymentRemoved bool
}

// DeleteResult reports what a scoped delete removed.
type DeleteResult struct {
	Scope           core.Scope
	RemovedBase     bool
	EndDate         *time.Time
	VariantsRemoved int64
	PaymentsRemoved int64
}

// ScopeEngine applies edits and deletes to one month, to a month onward, or
// to a whole expense, keeping expenses, variants and payments consistent.
// Writes are sequential and not rolled back on failure.
type ScopeEngine struct {
	store     storage.RecordStore
	ledger    *PaymentLedger
	publisher EventPublisher
}

func NewScopeEngine(store storage.RecordStore, ledger *PaymentLedger, publisher EventPublisher) *ScopeEngine {
	return &ScopeEngine{store: store, ledger: ledger, publisher: publisher}
}

// EditWithScope applies updates to the expense as seen from month.
//
// only: merges the override fields into month's variant; a payment status of
// paid or unpaid records or removes that month's payment.
// future: merges the override fields into every month from month to the
// expense's end, or FutureEditMonths months when it is open-ended.
// all: overwrites the expense itself and drops every variant.
func (e *ScopeEngine) EditWithScope(ctx context.Context, userID, expenseID, scope, month string, updates core.ExpenseUpdates) (EditResult, error) {
	sc, err := core.ParseScope(scope)
	if err != nil {
		return EditResult{}, err
	}
	mon, err := core.ParseMonth(month)
	if err != nil {
		return EditResult{}, err
	}
	if updates.IsEmpty() {
		return EditResult{}, fmt.Errorf("%w: no fields to update", core.ErrValidation)
	}
	if err := updates.Validate(); err != nil {
		return EditResult{}, err
	}
	base, err := e.store.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return EditResult{}, err
	}

	var res EditResult
	switch sc {
	case core.ScopeOnly:
		res, err = e.editOnly(ctx, base, mon, updates)
	case core.ScopeFuture:
		res, err = e.editFuture(ctx, base, mon, updates)
	case core.ScopeAll:
		res, err = e.editAll(ctx, base, updates)
	}
	if err != nil {
		return EditResult{}, err
	}
	res.Scope = sc

	evt := amqp.NewExpenseEvent(amqp.EventExpenseEdited, expenseID, userID)
	evt.Name = base.Name
	evt.Scope = string(sc)
	evt.Months = res.TouchedMonths
	if updates.Amount != nil {
		evt.Amount = core.FormatAmount(*updates.Amount)
	}
	publish(ctx, e.publisher, evt)

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogScopedChange(ctx, applog.OpUpdate, userID, expenseID, mon.String(), string(sc), len(res.TouchedMonths))
	return res, nil
}

func (e *ScopeEngine) editOnly(ctx context.Context, base core.Expense, mon core.Month, updates core.ExpenseUpdates) (EditResult, error) {
	token := mon.String()
	res := EditResult{TouchedMonths: []string{token}}

	patch := updates.Patch()
	if patch.IsEmpty() && updates.PaymentStatus == nil {
		return EditResult{}, fmt.Errorf("%w: single-month edits need an override field or a payment status", core.ErrValidation)
	}
	var variant *core.Variant
	if patch.IsEmpty() {
		v, err := e.store.GetVariant(ctx, base.ID, token)
		if err != nil {
			return EditResult{}, fmt.Errorf("load variant: %w", err)
		}
		variant = v
	} else {
		v, err := e.store.UpsertVariant(ctx, base.ID, token, patch)
		if err != nil {
			return EditResult{}, fmt.Errorf("upsert variant %s: %w", token, err)
		}
		variant = &v
	}
	res.Variant = variant

	if updates.PaymentStatus == nil {
		return res, nil
	}
	switch *updates.PaymentStatus {
	case core.MonthPaid:
		amount := base.Amount
		if variant != nil && variant.Amount != nil {
			amount = *variant.Amount
		}
		if updates.Amount != nil {
			amount = *updates.Amount
		}
		created, err := e.ledger.ensurePaid(ctx, base.ID, token, PaymentInput{
			Amount: amount,
			Method: methodManual,
			Note:   noteOnScopedEdit,
		})
		if err != nil {
			return EditResult{}, err
		}
		res.PaymentCreated = created
	case core.MonthUnpaid:
		removed, err := e.ledger.ensureUnpaid(ctx, base.ID, token)
		if err != nil {
			return EditResult{}, err
		}
		res.PaymentRemoved = removed
	}
	return res, nil
}

// editFuture upserts one month at a time; a failure leaves earlier months
// updated.
func (e *ScopeEngine) editFuture(ctx context.Context, base core.Expense, mon core.Month, updates core.ExpenseUpdates) (EditResult, error) {
	patch := updates.Patch()
	if patch.IsEmpty() {
		return EditResult{}, fmt.Errorf("%w: future edits need an amount, due day, category, name or description", core.ErrValidation)
	}

	months := core.MonthRange(mon, base.EndMonth(), core.FutureEditMonths)
	touched := make([]string, 0, len(months))
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			return EditResult{}, err
		}
		token := m.String()
		if _, err := e.store.UpsertVariant(ctx, base.ID, token, patch); err != nil {
			return EditResult{}, fmt.Errorf("upsert variant %s after %d months: %w", token, len(touched), err)
		}
		touched = append(touched, token)
	}
	return EditResult{TouchedMonths: touched}, nil
}

func (e *ScopeEngine) editAll(ctx context.Context, base core.Expense, updates core.ExpenseUpdates) (EditResult, error) {
	updated := base
	updates.ApplyTo(&updated)
	if err := updated.Validate(); err != nil {
		return EditResult{}, err
	}
	if err := e.store.UpdateExpense(ctx, &updated); err != nil {
		return EditResult{}, fmt.Errorf("update expense: %w", err)
	}
	n, err := e.store.DeleteVariants(ctx, base.ID)
	if err != nil {
		return EditResult{}, fmt.Errorf("reset variants: %w", err)
	}
	return EditResult{Expense: &updated, VariantsReset: n}, nil
}

// DeleteWithScope removes the expense from month onward (future) or entirely
// (all). A future delete keeps month as the last active month unless it is
// the first one, in which case nothing is left and the expense is removed.
func (e *ScopeEngine) DeleteWithScope(ctx context.Context, userID, expenseID, scope, month string) (DeleteResult, error) {
	sc, err := core.ParseScope(scope)
	if err != nil {
		return DeleteResult{}, err
	}
	if !sc.ValidForDelete() {
		return DeleteResult{}, fmt.Errorf("%w: %q cannot be used to delete", core.ErrInvalidScope, scope)
	}
	mon, err := core.ParseMonth(month)
	if err != nil {
		return DeleteResult{}, err
	}
	base, err := e.store.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	if sc == core.ScopeFuture && mon.After(base.StartMonth()) {
		res, err = e.truncate(ctx, base, mon)
	} else {
		res, err = e.remove(ctx, base)
	}
	if err != nil {
		return DeleteResult{}, err
	}
	res.Scope = sc

	evt := amqp.NewExpenseEvent(amqp.EventExpenseDeleted, expenseID, userID)
	evt.Name = base.Name
	evt.Scope = string(sc)
	if !res.RemovedBase {
		evt.Months = []string{mon.String()}
	}
	publish(ctx, e.publisher, evt)

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogScopedChange(ctx, applog.OpDelete, userID, expenseID, mon.String(), string(sc), len(evt.Months))
	return res, nil
}

func (e *ScopeEngine) truncate(ctx context.Context, base core.Expense, mon core.Month) (DeleteResult, error) {
	token := mon.String()
	variants, err := e.store.DeleteVariantsFrom(ctx, base.ID, token)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete variants from %s: %w", token, err)
	}
	payments, err := e.store.DeletePaymentsFrom(ctx, base.ID, token)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete payments from %s: %w", token, err)
	}

	// An earlier existing end stays; truncating never extends an expense.
	end := mon.LastInstant()
	if base.EndDate != nil && base.EndDate.Before(end) {
		end = *base.EndDate
	}
	base.EndDate = &end
	if err := e.store.UpdateExpense(ctx, &base); err != nil {
		return DeleteResult{}, fmt.Errorf("set end date: %w", err)
	}
	return DeleteResult{EndDate: &end, VariantsRemoved: variants, PaymentsRemoved: payments}, nil
}

// remove deletes variants and payments first, then the expense.
func (e *ScopeEngine) remove(ctx context.Context, base core.Expense) (DeleteResult, error) {
	variants, err := e.store.DeleteVariants(ctx, base.ID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete variants: %w", err)
	}
	payments, err := e.store.DeletePayments(ctx, base.ID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete payments: %w", err)
	}
	if err := e.store.DeleteExpense(ctx, base.OwnerID, base.ID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete expense: %w", err)
	}
	return DeleteResult{RemovedBase: true, VariantsRemoved: variants, PaymentsRemoved: payments}, nil
}
