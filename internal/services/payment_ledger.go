package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/storage"
)

const (
	methodManual     = "manual"
	noteOnCreate     = "Marcado como pago na criação"
	noteOnScopedEdit = "Marcado como pago na edição"
)

// PaymentInput describes an explicit payment.
type PaymentInput struct {
	Amount decimal.Decimal
	Method string
	Note   string
}

// PaymentLedger records and removes payments, at most one per expense and
// month. A payment is the only thing that makes a month paid.
type PaymentLedger struct {
	store     storage.RecordStore
	publisher EventPublisher
	now       Clock
}

func NewPaymentLedger(store storage.RecordStore, publisher EventPublisher, now Clock) *PaymentLedger {
	if now == nil {
		now = systemClock
	}
	return &PaymentLedger{store: store, publisher: publisher, now: now}
}

// MarkPaid records a confirmed payment for month. A second payment for the
// same month fails with core.ErrConflict.
func (l *PaymentLedger) MarkPaid(ctx context.Context, userID, expenseID, month string, in PaymentInput) (core.Payment, error) {
	mon, err := core.ParseMonth(month)
	if err != nil {
		return core.Payment{}, err
	}
	if !in.Amount.IsPositive() {
		return core.Payment{}, fmt.Errorf("%w: payment amount must be greater than zero", core.ErrInvalidAmount)
	}
	if _, err := l.store.GetExpense(ctx, userID, expenseID); err != nil {
		return core.Payment{}, err
	}

	p, err := l.record(ctx, expenseID, mon.String(), in)
	if err != nil {
		return core.Payment{}, err
	}

	evt := amqp.NewExpenseEvent(amqp.EventPaymentRecorded, expenseID, userID)
	evt.Months = []string{p.Month}
	evt.Amount = core.FormatAmount(p.Amount)
	publish(ctx, l.publisher, evt)

	slog.InfoContext(ctx, "Payment recorded",
		"expense_id", expenseID,
		"month", p.Month,
		"method", p.Method)
	return p, nil
}

// UnmarkPaid removes the payment for month, failing with core.ErrNotFound
// when there is none.
func (l *PaymentLedger) UnmarkPaid(ctx context.Context, userID, expenseID, month string) error {
	mon, err := core.ParseMonth(month)
	if err != nil {
		return err
	}
	if _, err := l.store.GetExpense(ctx, userID, expenseID); err != nil {
		return err
	}
	if err := l.store.DeletePayment(ctx, expenseID, mon.String()); err != nil {
		return err
	}

	evt := amqp.NewExpenseEvent(amqp.EventPaymentRemoved, expenseID, userID)
	evt.Months = []string{mon.String()}
	publish(ctx, l.publisher, evt)

	slog.InfoContext(ctx, "Payment removed", "expense_id", expenseID, "month", mon.String())
	return nil
}

// ensurePaid records a payment unless the month already has one. It reports
// whether it created the payment.
func (l *PaymentLedger) ensurePaid(ctx context.Context, expenseID, month string, in PaymentInput) (bool, error) {
	existing, err := l.store.GetPayment(ctx, expenseID, month)
	if err != nil {
		return false, fmt.Errorf("load payment: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if _, err := l.record(ctx, expenseID, month, in); err != nil {
		// Lost a race against another writer: the month is paid either way.
		if errors.Is(err, core.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ensureUnpaid removes the month's payment if there is one. It reports
// whether a payment was removed.
func (l *PaymentLedger) ensureUnpaid(ctx context.Context, expenseID, month string) (bool, error) {
	err := l.store.DeletePayment(ctx, expenseID, month)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (l *PaymentLedger) record(ctx context.Context, expenseID, month string, in PaymentInput) (core.Payment, error) {
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = methodManual
	}
	p := core.Payment{
		ExpenseID: expenseID,
		Month:     month,
		Amount:    in.Amount,
		PaidAt:    l.now(),
		Method:    method,
		Note:      strings.TrimSpace(in.Note),
		Status:    core.PaymentConfirmed,
	}
	if err := l.store.CreatePayment(ctx, &p); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Payment{}, fmt.Errorf("payment for %s already recorded: %w", month, core.ErrConflict)
		}
		return core.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}
