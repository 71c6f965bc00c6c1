package sheets

import (
	"context"
	"strings"
	"time"
)

// ActivityRow is one line of the activity log: a single change to an
// expense, its variants or its payments.
type ActivityRow struct {
	Timestamp time.Time
	Type      string
	ExpenseID string
	UserID    string
	Name      string
	Scope     string
	Months    []string
	Amount    string
}

// Header is the column layout written by every ActivityWriter.
var Header = []any{"Data", "Evento", "Despesa", "Usuário", "Nome", "Escopo", "Meses", "Valor"}

// Values renders the row in Header order.
func (r ActivityRow) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Type,
		r.ExpenseID,
		r.UserID,
		r.Name,
		r.Scope,
		strings.Join(r.Months, ", "),
		r.Amount,
	}
}

// Ports for outbound adapters.
type (
	ActivityWriter interface {
		AppendActivity(ctx context.Context, row ActivityRow) (rowRef string, err error)
	}
)
