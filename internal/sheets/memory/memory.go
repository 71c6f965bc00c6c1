package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "despesas/internal/sheets"
)

// Store keeps activity rows in process.
type Store struct {
	mu   sync.Mutex
	rows []ports.ActivityRow
}

var _ ports.ActivityWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendActivity stores the row and returns a synthetic row reference.
func (s *Store) AppendActivity(ctx context.Context, row ports.ActivityRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if row.Type == "" || row.ExpenseID == "" {
		return "", errors.New("activity row without type or expense id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row.Months = append([]string(nil), row.Months...)
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.ActivityRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ActivityRow(nil), s.rows...)
}
