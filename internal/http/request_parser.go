// Package http provides the JSON API server and its handlers.
//
// This file implements decoding of request bodies and query parameters into
// the inputs the services expect.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
	"despesas/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
// An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", core.ErrValidation)
		}
		return fmt.Errorf("%w: read body: %v", core.ErrInvalidFormat, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidFormat, err)
	}
	return nil
}

// jsonAmount accepts an amount as a JSON number or string, with either a dot
// or a comma as decimal separator.
type jsonAmount struct {
	Set bool
	Raw string
}

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	a.Set = true
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.Raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string")
	}
	a.Raw = n.String()
	return nil
}

// Decimal parses the amount. Zero and negative values fail with
// core.ErrInvalidAmount.
func (a jsonAmount) Decimal() (decimal.Decimal, error) {
	return core.ParseAmount(a.Raw)
}

// optionalDate tells an absent date from an explicit null.
type optionalDate struct {
	Set   bool
	Null  bool
	Value string
}

func (d *optionalDate) UnmarshalJSON(b []byte) error {
	d.Set = true
	if string(b) == "null" {
		d.Null = true
		return nil
	}
	if err := json.Unmarshal(b, &d.Value); err != nil {
		return fmt.Errorf("date must be a string")
	}
	if strings.TrimSpace(d.Value) == "" {
		d.Null = true
	}
	return nil
}

func (d optionalDate) Time() (time.Time, error) {
	return core.ParseDate(d.Value)
}

type createExpenseRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Amount      jsonAmount   `json:"amount"`
	DueDay      int          `json:"dueDay"`
	StartDate   optionalDate `json:"startDate"`
	EndDate     optionalDate `json:"endDate"`
	Category    string       `json:"category"`
	// PaymentStatus "paid" records the start month's payment; Paid is the
	// older boolean spelling of the same thing.
	PaymentStatus *string `json:"paymentStatus"`
	Paid          bool    `json:"paid"`
}

func (req createExpenseRequest) toInput() (services.CreateExpenseInput, error) {
	in := services.CreateExpenseInput{
		Name:        req.Name,
		Description: req.Description,
		DueDay:      req.DueDay,
		Category:    req.Category,
		Paid:        req.Paid,
	}

	if req.PaymentStatus != nil {
		switch core.MonthStatus(strings.TrimSpace(*req.PaymentStatus)) {
		case core.MonthPaid:
			in.Paid = true
		case core.MonthUnpaid:
			in.Paid = false
		default:
			return in, fmt.Errorf("%w: paymentStatus must be paid or unpaid", core.ErrValidation)
		}
	}

	if !req.Amount.Set {
		return in, fmt.Errorf("%w: amount is required", core.ErrValidation)
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		return in, err
	}
	in.Amount = amount

	if !req.StartDate.Set || req.StartDate.Null {
		return in, core.ErrMissingStart
	}
	if in.StartDate, err = req.StartDate.Time(); err != nil {
		return in, err
	}
	if req.EndDate.Set && !req.EndDate.Null {
		end, err := req.EndDate.Time()
		if err != nil {
			return in, err
		}
		in.EndDate = &end
	}
	return in, nil
}

// updatesRequest is the "updates" object of a scoped edit.
type updatesRequest struct {
	Name          *string      `json:"name"`
	Description   *string      `json:"description"`
	Amount        jsonAmount   `json:"amount"`
	DueDay        *int         `json:"dueDay"`
	Category      *string      `json:"category"`
	StartDate     optionalDate `json:"startDate"`
	EndDate       optionalDate `json:"endDate"`
	Status        *string      `json:"status"`
	PaymentStatus *string      `json:"paymentStatus"`
}

func (req updatesRequest) toUpdates() (core.ExpenseUpdates, error) {
	u := core.ExpenseUpdates{
		Name:        trimmed(req.Name),
		Description: trimmed(req.Description),
		DueDay:      req.DueDay,
		Category:    trimmed(req.Category),
	}

	if req.Amount.Set {
		amount, err := req.Amount.Decimal()
		if err != nil {
			return u, err
		}
		u.Amount = &amount
	}
	if req.StartDate.Set {
		if req.StartDate.Null {
			return u, core.ErrMissingStart
		}
		start, err := req.StartDate.Time()
		if err != nil {
			return u, err
		}
		u.StartDate = &start
	}
	if req.EndDate.Set {
		if req.EndDate.Null {
			u.ClearEndDate = true
		} else {
			end, err := req.EndDate.Time()
			if err != nil {
				return u, err
			}
			u.EndDate = &end
		}
	}
	if req.Status != nil {
		st := core.ExpenseStatus(strings.TrimSpace(*req.Status))
		u.Status = &st
	}
	if req.PaymentStatus != nil {
		ps := core.MonthStatus(strings.TrimSpace(*req.PaymentStatus))
		u.PaymentStatus = &ps
	}
	return u, nil
}

type editRequest struct {
	Scope   string         `json:"scope"`
	Month   string         `json:"month"`
	Updates updatesRequest `json:"updates"`
}

// variantRequest carries a month and the override fields for it.
type variantRequest struct {
	Month       string     `json:"month"`
	Scope       string     `json:"scope"`
	Amount      jsonAmount `json:"amount"`
	DueDay      *int       `json:"dueDay"`
	Category    *string    `json:"category"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
}

func (req variantRequest) toPatch() (core.VariantPatch, error) {
	p := core.VariantPatch{
		DueDay:      req.DueDay,
		Category:    trimmed(req.Category),
		Name:        trimmed(req.Name),
		Description: trimmed(req.Description),
	}
	if req.Amount.Set {
		amount, err := req.Amount.Decimal()
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}
	return p, nil
}

type paymentRequest struct {
	Month  string     `json:"month"`
	Amount jsonAmount `json:"amount"`
	Method string     `json:"method"`
	Note   string     `json:"note"`
}

func (req paymentRequest) toInput() (services.PaymentInput, error) {
	if !req.Amount.Set {
		return services.PaymentInput{}, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	amount, err := req.Amount.Decimal()
	if err != nil {
		return services.PaymentInput{}, err
	}
	return services.PaymentInput{Amount: amount, Method: req.Method, Note: req.Note}, nil
}

type registerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	RegisterPassword string `json:"registerPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// queryMonth returns the month query parameter, defaulting to the current
// month when absent.
func queryMonth(r *http.Request, now time.Time) string {
	if m := strings.TrimSpace(r.URL.Query().Get("month")); m != "" {
		return m
	}
	return core.MonthOf(now).String()
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
