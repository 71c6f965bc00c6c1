package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// FutureEditMonths bounds a "future" scoped edit on an open-ended expense.
	FutureEditMonths = 60
	// VariantSpreadMonths bounds a variant spread on an open-ended expense.
	VariantSpreadMonths = 12
)

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a "YYYY-MM" token.
func ParseMonth(token string) (Month, error) {
	if len(token) != 7 || token[4] != '-' {
		return Month{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidFormat, token)
	}
	year, err := strconv.Atoi(token[:4])
	if err != nil || strings.ContainsAny(token[:4], "+-") {
		return Month{}, fmt.Errorf("%w: month %q has an invalid year", ErrInvalidFormat, token)
	}
	m, err := strconv.Atoi(token[5:])
	if err != nil || strings.ContainsAny(token[5:], "+-") || m < 1 || m > 12 {
		return Month{}, fmt.Errorf("%w: month %q has an invalid month number", ErrInvalidFormat, token)
	}
	return Month{Year: year, Month: time.Month(m)}, nil
}

// MustParseMonth is ParseMonth for literals known to be valid.
func MustParseMonth(token string) Month {
	m, err := ParseMonth(token)
	if err != nil {
		panic(err)
	}
	return m
}

// MonthOf returns the month containing t, read in UTC.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// AddMonths moves m by n months, crossing year boundaries as needed.
func (m Month) AddMonths(n int) Month {
	idx := m.Year*12 + int(m.Month) - 1 + n
	return Month{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// Compare returns -1, 0 or +1.
func (m Month) Compare(other Month) int {
	switch {
	case m.Year < other.Year:
		return -1
	case m.Year > other.Year:
		return 1
	case m.Month < other.Month:
		return -1
	case m.Month > other.Month:
		return 1
	}
	return 0
}

func (m Month) Before(other Month) bool { return m.Compare(other) < 0 }
func (m Month) After(other Month) bool  { return m.Compare(other) > 0 }

// FirstDay is midnight UTC of the first day of m.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastInstant is the last millisecond of m in UTC.
func (m Month) LastInstant() time.Time {
	return m.AddMonths(1).FirstDay().Add(-time.Millisecond)
}

// DaysIn returns the number of days in m.
func (m Month) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate builds the due date for day within m. Days past the end of the
// month are clamped to the last day.
func (m Month) DueDate(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := m.DaysIn(); day > last {
		day = last
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the months from start to end inclusive, ascending.
// A nil end yields exactly capMonths months beginning at start.
func MonthRange(start Month, end *Month, capMonths int) []Month {
	last := start.AddMonths(capMonths - 1)
	if end != nil {
		last = *end
	}
	if last.Before(start) {
		return nil
	}
	months := make([]Month, 0, monthsBetween(start, last)+1)
	for cur := start; !cur.After(last); cur = cur.AddMonths(1) {
		months = append(months, cur)
	}
	return months
}

// MonthTokens renders months as "YYYY-MM" tokens.
func MonthTokens(months []Month) []string {
	tokens := make([]string, len(months))
	for i, m := range months {
		tokens[i] = m.String()
	}
	return tokens
}

// CompareMonths orders two well-formed month tokens. Tokens are fixed width
// and zero padded, so byte order is calendar order.
func CompareMonths(a, b string) int {
	return strings.Compare(a, b)
}

func IsSameOrBefore(a, b string) bool {
	return CompareMonths(a, b) <= 0
}

func monthsBetween(a, b Month) int {
	return (b.Year*12 + int(b.Month)) - (a.Year*12 + int(a.Month))
}

// ParseDate accepts "YYYY-MM-DD" or RFC 3339 and returns the instant in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, s)
	}
	return t.UTC(), nil
}
