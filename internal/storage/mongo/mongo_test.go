package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"despesas/internal/core"
	"despesas/internal/storage"
)

var _ storage.Store = (*Store)(nil)

func TestExpenseDocKeepsCentsAndOpenEnd(t *testing.T) {
	e := core.Expense{
		OwnerID:   "u1",
		Name:      "Internet",
		Amount:    decimal.RequireFromString("99.90"),
		DueDay:    15,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Category:  "Utilidades",
		Status:    core.StatusActive,
	}
	doc, err := toExpenseDoc(e)
	if err != nil {
		t.Fatalf("toExpenseDoc: %v", err)
	}
	got, err := doc.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if !got.Amount.Equal(e.Amount) || got.EndDate != nil || got.OwnerID != "u1" {
		t.Fatalf("unexpected expense %+v", got)
	}
}

func TestVariantDocOmitsUnsetFields(t *testing.T) {
	amount, err := toDecimal128(decimal.NewFromInt(1400))
	if err != nil {
		t.Fatal(err)
	}
	v, err := variantDoc{ExpenseID: "e1", Month: "2024-08", Amount: &amount}.toCore()
	if err != nil {
		t.Fatal(err)
	}
	if v.Amount == nil || v.Amount.String() != "1400" {
		t.Fatalf("amount = %v", v.Amount)
	}
	if v.DueDay != nil || v.Category != nil || v.Name != nil || v.Description != nil {
		t.Fatalf("unset fields must stay nil: %+v", v)
	}
}

func TestPaymentDocFieldNames(t *testing.T) {
	raw, err := bson.Marshal(paymentDoc{ExpenseID: "e1", Month: "2024-08", Method: "pix", Note: "adiantado"})
	if err != nil {
		t.Fatal(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		key  string
		want string
	}{
		{"expenseId", "e1"},
		{"month", "2024-08"},
		{"method", "pix"},
		{"note", "adiantado"},
	}
	for _, tt := range tests {
		if got, _ := m[tt.key].(string); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}
	for _, stale := range []string{"paymentMethod", "notes"} {
		if _, ok := m[stale]; ok {
			t.Errorf("unexpected key %q", stale)
		}
	}
}
