// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the wire
// shapes of the domain types.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"despesas/internal/core"
	"despesas/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	cookies    []*http.Cookie
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Cookie attaches a Set-Cookie header.
func (b *JSONResponseBuilder) Cookie(c *http.Cookie) *JSONResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body with a 204 status writes no
// content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}
	if b.body == nil && b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// message is the body of responses that only report an outcome.
type message struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, msg, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(message{Message: msg, Error: detail})
}

// amount renders a decimal as a JSON number with two decimals.
func amount(d decimal.Decimal) json.Number {
	return json.Number(core.FormatAmount(d))
}

func optionalAmount(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := amount(*d)
	return &n
}

func dateOnly(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func optionalDateOnly(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := dateOnly(*t)
	return &s
}

type expenseResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	DueDay      int         `json:"dueDay"`
	StartDate   string      `json:"startDate"`
	EndDate     *string     `json:"endDate"`
	Category    string      `json:"category"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Amount:      amount(e.Amount),
		DueDay:      e.DueDay,
		StartDate:   dateOnly(e.StartDate),
		EndDate:     optionalDateOnly(e.EndDate),
		Category:    e.Category,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type variantResponse struct {
	ID          string       `json:"id"`
	ExpenseID   string       `json:"expenseId"`
	Month       string       `json:"month"`
	Amount      *json.Number `json:"amount,omitempty"`
	DueDay      *int         `json:"dueDay,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func toVariantResponse(v core.Variant) variantResponse {
	return variantResponse{
		ID:          v.ID,
		ExpenseID:   v.ExpenseID,
		Month:       v.Month,
		Amount:      optionalAmount(v.Amount),
		DueDay:      v.DueDay,
		Category:    v.Category,
		Name:        v.Name,
		Description: v.Description,
		UpdatedAt:   v.UpdatedAt,
	}
}

func toVariantResponses(vs []core.Variant) []variantResponse {
	out := make([]variantResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVariantResponse(v))
	}
	return out
}

type paymentResponse struct {
	ID        string      `json:"id"`
	ExpenseID string      `json:"expenseId"`
	Month     string      `json:"month"`
	Amount    json.Number `json:"amount"`
	PaidAt    time.Time   `json:"paidAt"`
	Method    string      `json:"method"`
	Note      string      `json:"note,omitempty"`
	Status    string      `json:"status"`
}

func toPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		ExpenseID: p.ExpenseID,
		Month:     p.Month,
		Amount:    amount(p.Amount),
		PaidAt:    p.PaidAt,
		Method:    p.Method,
		Note:      p.Note,
		Status:    string(p.Status),
	}
}

// viewResponse is one row of a month listing.
type viewResponse struct {
	ExpenseID   string           `json:"expenseId"`
	Month       string           `json:"month"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Amount      json.Number      `json:"amount"`
	DueDay      int              `json:"dueDay"`
	DueDate     string           `json:"dueDate"`
	Status      string           `json:"status"`
	HasVariant  bool             `json:"hasVariant"`
	Payment     *paymentResponse `json:"payment"`
	StartDate   string           `json:"startDate"`
	EndDate     *string          `json:"endDate"`
}

func toViewResponse(v core.EffectiveView) viewResponse {
	out := viewResponse{
		ExpenseID:   v.ExpenseID,
		Month:       v.Month,
		Name:        v.Name,
		Description: v.Description,
		Category:    v.Category,
		Amount:      amount(v.Amount),
		DueDay:      v.DueDay,
		DueDate:     dateOnly(v.DueDate),
		Status:      string(v.Status),
		HasVariant:  v.HasVariant,
		StartDate:   dateOnly(v.StartDate),
		EndDate:     optionalDateOnly(v.EndDate),
	}
	if v.Payment != nil {
		p := toPaymentResponse(*v.Payment)
		out.Payment = &p
	}
	return out
}

type categoryResponse struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

type summaryResponse struct {
	Month       string             `json:"month"`
	Total       json.Number        `json:"total"`
	Paid        json.Number        `json:"paid"`
	Outstanding json.Number        `json:"outstanding"`
	Overdue     int                `json:"overdue"`
	ByCategory  []categoryResponse `json:"byCategory"`
}

func toSummaryResponse(s core.MonthSummary) summaryResponse {
	out := summaryResponse{
		Month:       s.Month,
		Total:       amount(s.Total),
		Paid:        amount(s.Paid),
		Outstanding: amount(s.Outstanding),
		Overdue:     s.Overdue,
		ByCategory:  make([]categoryResponse, 0, len(s.ByCategory)),
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryResponse{Name: c.Name, Amount: amount(c.Amount)})
	}
	return out
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

type editResponse struct {
	Message        string           `json:"message"`
	Scope          string           `json:"scope"`
	Variant        *variantResponse `json:"variant,omitempty"`
	TouchedMonths  []string         `json:"touchedMonths,omitempty"`
	Expense        *expenseResponse `json:"expense,omitempty"`
	VariantsReset  int64            `json:"variantsReset,omitempty"`
	PaymentCreated bool             `json:"paymentCreated"`
	PaymentRemoved bool             `json:"paymentRemoved"`
}

func toEditResponse(res services.EditResult) editResponse {
	out := editResponse{
		Message:        "Despesa atualizada com sucesso",
		Scope:          string(res.Scope),
		TouchedMonths:  res.TouchedMonths,
		VariantsReset:  res.VariantsReset,
		PaymentCreated: res.PaymentCreated,
		PaymentRemoved: res.PaymentRemoved,
	}
	if res.Variant != nil {
		v := toVariantResponse(*res.Variant)
		out.Variant = &v
	}
	if res.Expense != nil {
		e := toExpenseResponse(*res.Expense)
		out.Expense = &e
	}
	return out
}

type deleteResponse struct {
	Message         string  `json:"message"`
	Scope           string  `json:"scope"`
	RemovedBase     bool    `json:"removedBase"`
	EndDate         *string `json:"endDate,omitempty"`
	VariantsRemoved int64   `json:"variantsRemoved"`
	PaymentsRemoved int64   `json:"paymentsRemoved"`
}

func toDeleteResponse(res services.DeleteResult) deleteResponse {
	return deleteResponse{
		Message:         "Despesa excluída com sucesso",
		Scope:           string(res.Scope),
		RemovedBase:     res.RemovedBase,
		EndDate:         optionalDateOnly(res.EndDate),
		VariantsRemoved: res.VariantsRemoved,
		PaymentsRemoved: res.PaymentsRemoved,
	}
}

type demoResultResponse struct {
	Message  string    `json:"message"`
	UserID   string    `json:"userId"`
	Expenses int       `json:"expenses"`
	Payments int       `json:"payments"`
	ResetAt  time.Time `json:"resetAt"`
}

func toDemoResultResponse(msg string, res services.DemoResult) demoResultResponse {
	return demoResultResponse{Message: msg, UserID: res.UserID, Expenses: res.Expenses, Payments: res.Payments, ResetAt: res.ResetAt}
}
