package storage

import (
	"context"
	"time"

	"despesas/internal/core"
)

// ExpenseStore persists expense templates. Lookups are scoped to an owner;
// an expense owned by someone else is reported as core.ErrNotFound.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *core.Expense) error
	GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error)
	// ListActiveExpenses returns the active expenses of ownerID that started by
	// periodEnd and, if they end, end no earlier than nextPeriodStart. Results
	// are in creation order.
	ListActiveExpenses(ctx context.Context, ownerID string, periodEnd, nextPeriodStart time.Time) ([]core.Expense, error)
	ListExpenseIDs(ctx context.Context, ownerID string) ([]string, error)
	UpdateExpense(ctx context.Context, e *core.Expense) error
	DeleteExpense(ctx context.Context, ownerID, id string) error
	HasAnyExpense(ctx context.Context, ownerID string) (bool, error)
}

// VariantStore persists per-month overrides, at most one per (expense, month).
type VariantStore interface {
	// GetVariant returns nil when the month has no variant.
	GetVariant(ctx context.Context, expenseID, month string) (*core.Variant, error)
	// UpsertVariant merges patch into the variant for (expenseID, month),
	// creating it if needed, and returns the stored result.
	UpsertVariant(ctx context.Context, expenseID, month string, patch core.VariantPatch) (core.Variant, error)
	ListVariants(ctx context.Context, expenseID string) ([]core.Variant, error)
	ListVariantsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Variant, error)
	DeleteVariants(ctx context.Context, expenseID string) (int64, error)
	DeleteVariantsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error)
}

// PaymentStore persists payments, at most one per (expense, month). Creating
// a second one fails with core.ErrConflict.
type PaymentStore interface {
	// GetPayment returns nil when the month has no payment.
	GetPayment(ctx context.Context, expenseID, month string) (*core.Payment, error)
	CreatePayment(ctx context.Context, p *core.Payment) error
	DeletePayment(ctx context.Context, expenseID, month string) error
	ListPaymentsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Payment, error)
	DeletePayments(ctx context.Context, expenseID string) (int64, error)
	DeletePaymentsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error)
}

// UserStore persists accounts. Emails are unique; a duplicate fails with
// core.ErrEmailTaken.
type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUserByID(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUser(ctx context.Context, u *core.User) error
}

// RecordStore covers the expense records the scope engine coordinates.
type RecordStore interface {
	ExpenseStore
	VariantStore
	PaymentStore
}

// Store is a complete persistence backend.
type Store interface {
	RecordStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
