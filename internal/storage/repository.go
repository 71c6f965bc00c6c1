package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"despesas/internal/core"
)

// Fixed-width UTC layout so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var _ Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const expenseColumns = `id, owner_id, name, description, amount, due_day, start_date, end_date, category, status, created_at, updated_at`

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = core.StatusActive
	}

	_, err := r.db.ExecContext(ctx, `
	INSERT INTO expenses(`+expenseColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Name, e.Description, e.Amount.String(), e.DueDay,
		formatTime(e.StartDate), formatNullTime(e.EndDate), e.Category, string(e.Status),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"amount", e.Amount.String(),
		"due_day", e.DueDay)
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListActiveExpenses(ctx context.Context, ownerID string, periodEnd, nextPeriodStart time.Time) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+expenseColumns+` FROM expenses
	WHERE owner_id = ? AND status = 'active'
	  AND start_date <= ?
	  AND (end_date IS NULL OR end_date >= ?)
	ORDER BY seq`,
		ownerID, formatTime(periodEnd), formatTime(nextPeriodStart))
	if err != nil {
		return nil, fmt.Errorf("list active expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListExpenseIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM expenses WHERE owner_id = ? ORDER BY seq`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expense ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	e.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
	UPDATE expenses SET
	 name = ?, description = ?, amount = ?, due_day = ?, start_date = ?, end_date = ?,
	 category = ?, status = ?, updated_at = ?
	WHERE id = ? AND owner_id = ?`,
		e.Name, e.Description, e.Amount.String(), e.DueDay, formatTime(e.StartDate), formatNullTime(e.EndDate),
		e.Category, string(e.Status), formatTime(e.UpdatedAt), e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return expectAffected(res, "expense "+e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectAffected(res, "expense "+id)
}

func (r *SQLiteRepository) HasAnyExpense(ctx context.Context, ownerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM expenses WHERE owner_id = ?)`, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check expenses: %w", err)
	}
	return exists, nil
}

const variantColumns = `id, expense_id, month, amount, due_day, category, name, description, created_at, updated_at`

func (r *SQLiteRepository) GetVariant(ctx context.Context, expenseID, month string) (*core.Variant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM expense_variants WHERE expense_id = ? AND month = ?`, expenseID, month)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

func (r *SQLiteRepository) UpsertVariant(ctx context.Context, expenseID, month string, patch core.VariantPatch) (core.Variant, error) {
	now := formatTime(r.now().UTC())
	var amount sql.NullString
	if patch.Amount != nil {
		amount = sql.NullString{String: patch.Amount.String(), Valid: true}
	}
	var dueDay sql.NullInt64
	if patch.DueDay != nil {
		dueDay = sql.NullInt64{Int64: int64(*patch.DueDay), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
	INSERT INTO expense_variants(`+variantColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(expense_id, month) DO UPDATE SET
	 amount = COALESCE(excluded.amount, expense_variants.amount),
	 due_day = COALESCE(excluded.due_day, expense_variants.due_day),
	 category = COALESCE(excluded.category, expense_variants.category),
	 name = COALESCE(excluded.name, expense_variants.name),
	 description = COALESCE(excluded.description, expense_variants.description),
	 updated_at = excluded.updated_at
	RETURNING `+variantColumns,
		uuid.NewString(), expenseID, month, amount, dueDay,
		nullString(patch.Category), nullString(patch.Name), nullString(patch.Description), now, now)
	v, err := scanVariant(row)
	if err != nil {
		return core.Variant{}, fmt.Errorf("upsert variant %s/%s: %w", expenseID, month, err)
	}
	return v, nil
}

func (r *SQLiteRepository) ListVariants(ctx context.Context, expenseID string) ([]core.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM expense_variants WHERE expense_id = ? ORDER BY month`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return collectVariants(rows)
}

func (r *SQLiteRepository) ListVariantsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Variant, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	query, args := inQuery(`SELECT `+variantColumns+` FROM expense_variants WHERE month = ? AND expense_id IN (%s)`, month, expenseIDs)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list variants for month: %w", err)
	}
	return collectVariants(rows)
}

func (r *SQLiteRepository) DeleteVariants(ctx context.Context, expenseID string) (int64, error) {
	return r.deleteMany(ctx, `DELETE FROM expense_variants WHERE expense_id = ?`, expenseID)
}

func (r *SQLiteRepository) DeleteVariantsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error) {
	return r.deleteMany(ctx, `DELETE FROM expense_variants WHERE expense_id = ? AND month >= ?`, expenseID, fromMonth)
}

const paymentColumns = `id, expense_id, month, amount, paid_at, method, note, status, created_at`

func (r *SQLiteRepository) GetPayment(ctx context.Context, expenseID, month string) (*core.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE expense_id = ? AND month = ?`, expenseID, month)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p *core.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO payments(`+paymentColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ExpenseID, p.Month, p.Amount.String(), formatTime(p.PaidAt),
		p.Method, p.Note, string(p.Status), formatTime(p.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("payment %s/%s: %w", p.ExpenseID, p.Month, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, expenseID, month string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE expense_id = ? AND month = ?`, expenseID, month)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return expectAffected(res, "payment "+expenseID+"/"+month)
}

func (r *SQLiteRepository) ListPaymentsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Payment, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	query, args := inQuery(`SELECT `+paymentColumns+` FROM payments WHERE month = ? AND expense_id IN (%s)`, month, expenseIDs)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments for month: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeletePayments(ctx context.Context, expenseID string) (int64, error) {
	return r.deleteMany(ctx, `DELETE FROM payments WHERE expense_id = ?`, expenseID)
}

func (r *SQLiteRepository) DeletePaymentsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error) {
	return r.deleteMany(ctx, `DELETE FROM payments WHERE expense_id = ? AND month >= ?`, expenseID, fromMonth)
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.now().UTC()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO users(`+userColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, core.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	u.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
	UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, updated_at = ?
	WHERE id = ?`,
		u.Name, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), formatTime(u.UpdatedAt), u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, core.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, "user "+u.ID)
}

func (r *SQLiteRepository) getUser(ctx context.Context, query, arg string) (core.User, error) {
	var (
		u                    core.User
		role                 string
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", arg, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = core.Role(role)
	u.CreatedAt, _ = parseTime(createdAt)
	u.UpdatedAt, _ = parseTime(updatedAt)
	return u, nil
}

func (r *SQLiteRepository) deleteMany(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                     core.Expense
		amount, start, status string
		end                   sql.NullString
		createdAt, updatedAt  string
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &amount, &e.DueDay,
		&start, &end, &e.Category, &status, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if e.StartDate, err = parseTime(start); err != nil {
		return core.Expense{}, err
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return core.Expense{}, err
		}
		e.EndDate = &t
	}
	e.Status = core.ExpenseStatus(status)
	e.CreatedAt, _ = parseTime(createdAt)
	e.UpdatedAt, _ = parseTime(updatedAt)
	return e, nil
}

func scanVariant(s scanner) (core.Variant, error) {
	var (
		v                           core.Variant
		amount                      sql.NullString
		dueDay                      sql.NullInt64
		category, name, description sql.NullString
		createdAt, updatedAt        string
	)
	if err := s.Scan(&v.ID, &v.ExpenseID, &v.Month, &amount, &dueDay, &category, &name, &description, &createdAt, &updatedAt); err != nil {
		return core.Variant{}, err
	}
	if amount.Valid {
		a, err := decimal.NewFromString(amount.String)
		if err != nil {
			return core.Variant{}, fmt.Errorf("parse amount %q: %w", amount.String, err)
		}
		v.Amount = &a
	}
	if dueDay.Valid {
		d := int(dueDay.Int64)
		v.DueDay = &d
	}
	v.Category = stringPtr(category)
	v.Name = stringPtr(name)
	v.Description = stringPtr(description)
	v.CreatedAt, _ = parseTime(createdAt)
	v.UpdatedAt, _ = parseTime(updatedAt)
	return v, nil
}

func scanPayment(s scanner) (core.Payment, error) {
	var (
		p                                 core.Payment
		amount, paidAt, status, createdAt string
	)
	if err := s.Scan(&p.ID, &p.ExpenseID, &p.Month, &amount, &paidAt, &p.Method, &p.Note, &status, &createdAt); err != nil {
		return core.Payment{}, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Payment{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if p.PaidAt, err = parseTime(paidAt); err != nil {
		return core.Payment{}, err
	}
	p.Status = core.PaymentStatus(status)
	p.CreatedAt, _ = parseTime(createdAt)
	return p, nil
}

func collectVariants(rows *sql.Rows) ([]core.Variant, error) {
	defer rows.Close()
	var out []core.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// inQuery expands the %s in format into one placeholder per id.
func inQuery(format, month string, ids []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, month)
	for _, id := range ids {
		args = append(args, id)
	}
	return fmt.Sprintf(format, placeholders), args
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
