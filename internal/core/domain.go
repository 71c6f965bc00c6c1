package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   ExpenseStatus = "active"
	StatusInactive ExpenseStatus = "inactive"

	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"

	MonthPaid   MonthStatus = "paid"
	MonthDue    MonthStatus = "due"
	MonthUnpaid MonthStatus = "unpaid"

	ScopeOnly   Scope = "only"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"

	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type (
	ExpenseStatus string
	PaymentStatus string
	// MonthStatus is the derived status of one expense in one month.
	MonthStatus string
	// Scope is how far an edit or delete reaches across an expense's months.
	Scope string
	Role  string

	// Expense is the recurring template a user defines once.
	Expense struct {
		ID          string
		OwnerID     string
		Name        string
		Description string
		Amount      decimal.Decimal
		DueDay      int
		StartDate   time.Time
		EndDate     *time.Time // nil means open-ended
		Category    string
		Status      ExpenseStatus
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Variant overrides an expense for a single month. Nil fields inherit
	// from the expense.
	Variant struct {
		ID          string
		ExpenseID   string
		Month       string
		Amount      *decimal.Decimal
		DueDay      *int
		Category    *string
		Name        *string
		Description *string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// VariantPatch carries the override fields to merge into a Variant.
	VariantPatch struct {
		Amount      *decimal.Decimal
		DueDay      *int
		Category    *string
		Name        *string
		Description *string
	}

	Payment struct {
		ID        string
		ExpenseID string
		Month     string
		Amount    decimal.Decimal
		PaidAt    time.Time
		Method    string
		Note      string
		Status    PaymentStatus
		CreatedAt time.Time
	}

	// ExpenseUpdates is the input of a scoped edit. Only non-nil fields are
	// applied. PaymentStatus is never stored; it only triggers a payment
	// being recorded or removed.
	ExpenseUpdates struct {
		Name          *string
		Description   *string
		Amount        *decimal.Decimal
		DueDay        *int
		Category      *string
		StartDate     *time.Time
		EndDate       *time.Time
		ClearEndDate  bool
		Status        *ExpenseStatus
		PaymentStatus *MonthStatus
	}

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		Role         Role
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidDueDay    = fmt.Errorf("%w: due day must be between 1 and 31", ErrValidation)
	ErrNameTooShort     = fmt.Errorf("%w: name must have at least 2 characters", ErrValidation)
	ErrCategoryTooShort = fmt.Errorf("%w: category must have at least 2 characters", ErrValidation)
	ErrMissingStart     = fmt.Errorf("%w: start date is required", ErrValidation)
	ErrEndBeforeStart   = fmt.Errorf("%w: end date must not precede start date", ErrValidation)
)

// ParseScope accepts "only", "future" or "all".
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.TrimSpace(s)); sc {
	case ScopeOnly, ScopeFuture, ScopeAll:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// ValidForDelete reports whether the scope may be used to delete. A single
// month cannot be deleted on its own.
func (s Scope) ValidForDelete() bool {
	return s == ScopeFuture || s == ScopeAll
}

func (s ExpenseStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

func (e Expense) Validate() error {
	if len([]rune(strings.TrimSpace(e.Name))) < 2 {
		return ErrNameTooShort
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.DueDay < 1 || e.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if e.StartDate.IsZero() {
		return ErrMissingStart
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return ErrEndBeforeStart
	}
	if len([]rune(strings.TrimSpace(e.Category))) < 2 {
		return ErrCategoryTooShort
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, e.Status)
	}
	return nil
}

// StartMonth is the first month the expense is active.
func (e Expense) StartMonth() Month {
	return MonthOf(e.StartDate)
}

// EndMonth is the last month the expense is active, or nil if open-ended.
func (e Expense) EndMonth() *Month {
	if e.EndDate == nil {
		return nil
	}
	m := MonthOf(*e.EndDate)
	return &m
}

// ActiveIn reports whether the expense is listed for month m: active, started
// by the end of m, and not ended before the first day of the next month.
func (e Expense) ActiveIn(m Month) bool {
	if e.Status != StatusActive {
		return false
	}
	if e.StartDate.After(m.LastInstant()) {
		return false
	}
	return e.EndDate == nil || !e.EndDate.Before(m.AddMonths(1).FirstDay())
}

// Validate checks the fields an update would write.
func (u ExpenseUpdates) Validate() error {
	if u.Name != nil && len([]rune(strings.TrimSpace(*u.Name))) < 2 {
		return ErrNameTooShort
	}
	if u.Amount != nil && !u.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if u.DueDay != nil && (*u.DueDay < 1 || *u.DueDay > 31) {
		return ErrInvalidDueDay
	}
	if u.Category != nil && len([]rune(strings.TrimSpace(*u.Category))) < 2 {
		return ErrCategoryTooShort
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *u.Status)
	}
	if u.PaymentStatus != nil && *u.PaymentStatus != MonthPaid && *u.PaymentStatus != MonthUnpaid {
		return fmt.Errorf("%w: payment status must be paid or unpaid", ErrValidation)
	}
	return nil
}

// IsEmpty reports whether u carries nothing to apply.
func (u ExpenseUpdates) IsEmpty() bool {
	return u.Patch().IsEmpty() && u.StartDate == nil && u.EndDate == nil && !u.ClearEndDate &&
		u.Status == nil && u.PaymentStatus == nil
}

// Patch projects the override fields of u.
func (u ExpenseUpdates) Patch() VariantPatch {
	return VariantPatch{
		Amount:      u.Amount,
		DueDay:      u.DueDay,
		Category:    u.Category,
		Name:        u.Name,
		Description: u.Description,
	}
}

// ApplyTo overwrites the fields of e that u carries.
func (u ExpenseUpdates) ApplyTo(e *Expense) {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Amount != nil {
		e.Amount = *u.Amount
	}
	if u.DueDay != nil {
		e.DueDay = *u.DueDay
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.StartDate != nil {
		e.StartDate = *u.StartDate
	}
	if u.ClearEndDate {
		e.EndDate = nil
	} else if u.EndDate != nil {
		end := *u.EndDate
		e.EndDate = &end
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
}

// Apply merges p into v. Fields p leaves nil keep their current value.
func (v *Variant) Apply(p VariantPatch) {
	if p.Amount != nil {
		a := *p.Amount
		v.Amount = &a
	}
	if p.DueDay != nil {
		d := *p.DueDay
		v.DueDay = &d
	}
	if p.Category != nil {
		c := *p.Category
		v.Category = &c
	}
	if p.Name != nil {
		n := *p.Name
		v.Name = &n
	}
	if p.Description != nil {
		d := *p.Description
		v.Description = &d
	}
}

// IsEmpty reports whether the patch carries no field.
func (p VariantPatch) IsEmpty() bool {
	return p.Amount == nil && p.DueDay == nil && p.Category == nil && p.Name == nil && p.Description == nil
}

func (p VariantPatch) Validate() error {
	return ExpenseUpdates{
		Amount:      p.Amount,
		DueDay:      p.DueDay,
		Category:    p.Category,
		Name:        p.Name,
		Description: p.Description,
	}.Validate()
}
