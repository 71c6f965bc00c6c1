// Package memory is an in-process storage.Store. Data is lost on exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"despesas/internal/core"
)

type pairKey struct {
	expenseID string
	month     string
}

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	expenses []core.Expense // creation order
	variants map[pairKey]core.Variant
	payments map[pairKey]core.Payment
	users    map[string]core.User
}

func New() *Store {
	return &Store{
		now:      time.Now,
		variants: make(map[pairKey]core.Variant),
		payments: make(map[pairKey]core.Payment),
		users:    make(map[string]core.User),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// CreateExpense stores e, assigning ID and timestamps when missing.
func (s *Store) CreateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = core.StatusActive
	}
	s.expenses = append(s.expenses, cloneExpense(*e))
	return nil
}

func (s *Store) GetExpense(_ context.Context, ownerID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(ownerID, id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return cloneExpense(s.expenses[i]), nil
}

func (s *Store) ListActiveExpenses(_ context.Context, ownerID string, periodEnd, nextPeriodStart time.Time) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.OwnerID != ownerID || e.Status != core.StatusActive {
			continue
		}
		if e.StartDate.After(periodEnd) {
			continue
		}
		if e.EndDate != nil && e.EndDate.Before(nextPeriodStart) {
			continue
		}
		out = append(out, cloneExpense(e))
	}
	return out, nil
}

func (s *Store) ListExpenseIDs(_ context.Context, ownerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.expenses {
		if e.OwnerID == ownerID {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (s *Store) UpdateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(e.OwnerID, e.ID)
	if i < 0 {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	e.CreatedAt = s.expenses[i].CreatedAt
	e.UpdatedAt = s.now()
	s.expenses[i] = cloneExpense(*e)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(ownerID, id)
	if i < 0 {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
	return nil
}

func (s *Store) HasAnyExpense(_ context.Context, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.OwnerID == ownerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetVariant(_ context.Context, expenseID, month string) (*core.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[pairKey{expenseID, month}]
	if !ok {
		return nil, nil
	}
	v = cloneVariant(v)
	return &v, nil
}

func (s *Store) UpsertVariant(_ context.Context, expenseID, month string, patch core.VariantPatch) (core.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{expenseID, month}
	now := s.now()
	v, ok := s.variants[key]
	if !ok {
		v = core.Variant{ID: uuid.NewString(), ExpenseID: expenseID, Month: month, CreatedAt: now}
	}
	v.Apply(patch)
	v.UpdatedAt = now
	s.variants[key] = v
	return cloneVariant(v), nil
}

func (s *Store) ListVariants(_ context.Context, expenseID string) ([]core.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Variant
	for k, v := range s.variants {
		if k.expenseID == expenseID {
			out = append(out, cloneVariant(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return core.CompareMonths(out[i].Month, out[j].Month) < 0 })
	return out, nil
}

func (s *Store) ListVariantsForMonth(_ context.Context, expenseIDs []string, month string) ([]core.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Variant
	for _, id := range expenseIDs {
		if v, ok := s.variants[pairKey{id, month}]; ok {
			out = append(out, cloneVariant(v))
		}
	}
	return out, nil
}

func (s *Store) DeleteVariants(_ context.Context, expenseID string) (int64, error) {
	return deleteWhere(&s.mu, s.variants, func(k pairKey) bool { return k.expenseID == expenseID }), nil
}

func (s *Store) DeleteVariantsFrom(_ context.Context, expenseID, fromMonth string) (int64, error) {
	return deleteWhere(&s.mu, s.variants, func(k pairKey) bool {
		return k.expenseID == expenseID && core.CompareMonths(k.month, fromMonth) >= 0
	}), nil
}

func (s *Store) GetPayment(_ context.Context, expenseID, month string) (*core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[pairKey{expenseID, month}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreatePayment(_ context.Context, p *core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{p.ExpenseID, p.Month}
	if _, ok := s.payments[key]; ok {
		return fmt.Errorf("payment %s/%s: %w", p.ExpenseID, p.Month, core.ErrConflict)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.payments[key] = *p
	return nil
}

func (s *Store) DeletePayment(_ context.Context, expenseID, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{expenseID, month}
	if _, ok := s.payments[key]; !ok {
		return fmt.Errorf("payment %s/%s: %w", expenseID, month, core.ErrNotFound)
	}
	delete(s.payments, key)
	return nil
}

func (s *Store) ListPaymentsForMonth(_ context.Context, expenseIDs []string, month string) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, id := range expenseIDs {
		if p, ok := s.payments[pairKey{id, month}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeletePayments(_ context.Context, expenseID string) (int64, error) {
	return deleteWhere(&s.mu, s.payments, func(k pairKey) bool { return k.expenseID == expenseID }), nil
}

func (s *Store) DeletePaymentsFrom(_ context.Context, expenseID, fromMonth string) (int64, error) {
	return deleteWhere(&s.mu, s.payments, func(k pairKey) bool {
		return k.expenseID == expenseID && core.CompareMonths(k.month, fromMonth) >= 0
	}), nil
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return fmt.Errorf("user %s: %w", email, core.ErrEmailTaken)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
}

func (s *Store) UpdateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, core.ErrNotFound)
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) indexOf(ownerID, id string) int {
	for i, e := range s.expenses {
		if e.ID == id && e.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func deleteWhere[V any](mu *sync.Mutex, m map[pairKey]V, match func(pairKey) bool) int64 {
	mu.Lock()
	defer mu.Unlock()
	var n int64
	for k := range m {
		if match(k) {
			delete(m, k)
			n++
		}
	}
	return n
}

func cloneExpense(e core.Expense) core.Expense {
	if e.EndDate != nil {
		end := *e.EndDate
		e.EndDate = &end
	}
	return e
}

func cloneVariant(v core.Variant) core.Variant {
	out := core.Variant{ID: v.ID, ExpenseID: v.ExpenseID, Month: v.Month, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
	out.Apply(core.VariantPatch{
		Amount:      v.Amount,
		DueDay:      v.DueDay,
		Category:    v.Category,
		Name:        v.Name,
		Description: v.Description,
	})
	return out
}
