package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
)

func newVariantService(f *fixture) *VariantService {
	return NewVariantService(f.store, f.pub, fixedClock)
}

func TestSaveMonthVariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newVariantService(f)
	base := f.create(t, rent())

	v, err := svc.SaveMonthVariant(ctx, testUser, base.ID, "2024-08", core.VariantPatch{Amount: dec("900")})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := svc.SaveMonthVariant(ctx, testUser, base.ID, "2024-08", core.VariantPatch{Name: ptr("Aluguel com desconto")})
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != v2.ID || v2.Amount == nil || !v2.Amount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("variant not merged: %+v", v2)
	}

	view, _ := f.expenses.ResolveMonth(ctx, testUser, base.ID, "2024-08")
	if view.Name != "Aluguel com desconto" {
		t.Fatalf("view name = %s", view.Name)
	}

	tests := []struct {
		name  string
		user  string
		month string
		patch core.VariantPatch
		want  error
	}{
		{"empty patch", testUser, "2024-08", core.VariantPatch{}, core.ErrValidation},
		{"bad due day", testUser, "2024-08", core.VariantPatch{DueDay: ptr(0)}, core.ErrValidation},
		{"bad month", testUser, "24-08", core.VariantPatch{DueDay: ptr(3)}, core.ErrInvalidFormat},
		{"foreign", "intruder", "2024-08", core.VariantPatch{DueDay: ptr(3)}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SaveMonthVariant(ctx, tt.user, base.ID, tt.month, tt.patch); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSpreadFromMonthOpenEnded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newVariantService(f)
	base := f.create(t, rent())

	if _, err := svc.SaveMonthVariant(ctx, testUser, base.ID, "2024-09", core.VariantPatch{DueDay: ptr(9)}); err != nil {
		t.Fatal(err)
	}

	out, err := svc.SpreadFromMonth(ctx, testUser, base.ID, "2024-08", core.VariantPatch{Amount: dec("1300")})
	if err != nil {
		t.Fatal(err)
	}
	// Open-ended: up to twelve months past the current month (2024-08).
	if len(out) != 13 || out[0].Month != "2024-08" || out[12].Month != "2025-08" {
		t.Fatalf("spread = %+v", out)
	}
	if !out[0].Created || out[1].Created {
		t.Fatalf("created flags = %v, %v", out[0].Created, out[1].Created)
	}

	sep, _ := f.store.GetVariant(ctx, base.ID, "2024-09")
	if sep.DueDay == nil || *sep.DueDay != 9 || sep.Amount == nil || !sep.Amount.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("existing variant not merged: %+v", sep)
	}
}

func TestSpreadFromMonthStopsAtEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newVariantService(f)
	in := rent()
	end := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
	in.EndDate = &end
	base := f.create(t, in)

	out, err := svc.SpreadFromMonth(ctx, testUser, base.ID, "2024-07", core.VariantPatch{Category: ptr("Moradia")})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[2].Month != "2024-09" {
		t.Fatalf("spread = %+v", out)
	}
}
