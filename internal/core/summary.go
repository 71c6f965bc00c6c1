package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthSummary totals the effective views of one month.
type MonthSummary struct {
	Month       string
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	Overdue     int
	ByCategory  []CategoryAmount
}

// Summarize totals views. Categories are sorted by descending amount, then name.
func Summarize(month string, views []EffectiveView) MonthSummary {
	s := MonthSummary{Month: month}
	byCat := make(map[string]decimal.Decimal)
	for _, v := range views {
		s.Total = s.Total.Add(v.Amount)
		switch v.Status {
		case MonthPaid:
			s.Paid = s.Paid.Add(v.Payment.Amount)
		case MonthDue:
			s.Overdue++
			s.Outstanding = s.Outstanding.Add(v.Amount)
		default:
			s.Outstanding = s.Outstanding.Add(v.Amount)
		}
		byCat[v.Category] = byCat[v.Category].Add(v.Amount)
	}
	for name, amount := range byCat {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if c := s.ByCategory[i].Amount.Cmp(s.ByCategory[j].Amount); c != 0 {
			return c > 0
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})
	return s
}
