package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// EffectiveView is what an expense amounts to in one month once its variant
// and payment are taken into account. It is computed on every read.
type EffectiveView struct {
	ExpenseID   string
	Month       string
	Name        string
	Description string
	Category    string
	Amount      decimal.Decimal
	DueDay      int
	DueDate     time.Time
	Status      MonthStatus
	HasVariant  bool
	Payment     *Payment
	StartDate   time.Time
	EndDate     *time.Time
}

// Materialize merges base with an optional variant and payment for month.
// A payment always means paid. Otherwise the month is due once now is past
// the due date.
func Materialize(base Expense, variant *Variant, payment *Payment, month Month, now time.Time) EffectiveView {
	view := EffectiveView{
		ExpenseID:   base.ID,
		Month:       month.String(),
		Name:        base.Name,
		Description: base.Description,
		Category:    base.Category,
		Amount:      base.Amount,
		DueDay:      base.DueDay,
		StartDate:   base.StartDate,
		EndDate:     base.EndDate,
	}

	if variant != nil {
		view.HasVariant = true
		if variant.Amount != nil {
			view.Amount = *variant.Amount
		}
		if variant.DueDay != nil {
			view.DueDay = *variant.DueDay
		}
		if variant.Category != nil {
			view.Category = *variant.Category
		}
		if variant.Name != nil {
			view.Name = *variant.Name
		}
		if variant.Description != nil {
			view.Description = *variant.Description
		}
	}

	view.DueDate = month.DueDate(view.DueDay)

	switch {
	case payment != nil:
		p := *payment
		view.Payment = &p
		view.Status = MonthPaid
	case now.After(view.DueDate):
		view.Status = MonthDue
	default:
		view.Status = MonthUnpaid
	}
	return view
}
