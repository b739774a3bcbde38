package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const monthLayout = "2006-01"

var (
	ErrInvalidMonthValue = errors.New("invalid month value")
	ErrInvalidWindow     = errors.New("window start is after window end")
)

// Month is a calendar month. It is the unit every projection is keyed on.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month, normalising out-of-range month numbers.
func NewMonth(year int, month time.Month) Month {
	return MonthFromIndex(year*12 + int(month) - 1)
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthFromIndex is the inverse of Month.Index.
func MonthFromIndex(idx int) Month {
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return Month{Year: y, Month: time.Month(m + 1)}
}

// ParseMonth accepts "YYYY-MM" or a full "YYYY-MM-DD" date.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(monthLayout) {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonthValue, s)
		}
		return MonthOf(t), nil
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonthValue, s)
	}
	return MonthOf(t), nil
}

// Index is the absolute month number (year*12 + month-1). Differences of
// indexes are month distances that stay correct across year boundaries.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) AddMonths(n int) Month {
	return MonthFromIndex(m.Index() + n)
}

func (m Month) Before(o Month) bool { return m.Index() < o.Index() }
func (m Month) After(o Month) bool  { return m.Index() > o.Index() }

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// FirstDay returns the first day of the month.
func (m Month) FirstDay() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

// Day returns the given day inside the month, clamped to the month length.
func (m Month) Day(day int) Date {
	if day < 1 {
		day = 1
	}
	if last := m.DaysIn(); day > last {
		day = last
	}
	return NewDate(m.Year, int(m.Month), day)
}

func (m Month) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthsBetween returns the number of months from a to b (b - a).
func MonthsBetween(a, b Month) int {
	return b.Index() - a.Index()
}

// Window is an inclusive range of months.
type Window struct {
	Start Month `json:"start"`
	End   Month `json:"end"`
}

// YearWindow covers January through December of year.
func YearWindow(year int) Window {
	return Window{
		Start: Month{Year: year, Month: time.January},
		End:   Month{Year: year, Month: time.December},
	}
}

// HorizonWindow covers n months starting at from. n below 1 is treated as 1.
func HorizonWindow(from Month, n int) Window {
	if n < 1 {
		n = 1
	}
	return Window{Start: from, End: from.AddMonths(n - 1)}
}

// ParseWindow parses two "YYYY-MM" bounds.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseMonth(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseMonth(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return NewValidationError("window", ErrInvalidMonthValue)
	}
	if w.Start.After(w.End) {
		return NewValidationError("window", ErrInvalidWindow)
	}
	return nil
}

// Len is the number of months in the window.
func (w Window) Len() int {
	if w.Start.After(w.End) {
		return 0
	}
	return MonthsBetween(w.Start, w.End) + 1
}

func (w Window) Contains(m Month) bool {
	return !m.Before(w.Start) && !m.After(w.End)
}

// Months lists every month of the window in order.
func (w Window) Months() []Month {
	n := w.Len()
	out := make([]Month, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, w.Start.AddMonths(i))
	}
	return out
}

// Intersect returns the overlap of two windows. The boolean is false
// when they do not overlap.
func (w Window) Intersect(o Window) (Window, bool) {
	out := w
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	if out.Start.After(out.End) {
		return Window{}, false
	}
	return out, true
}

// ActiveWindow clips w to the months covered by [start, end]. A zero end
// date means open-ended.
func ActiveWindow(w Window, start, end Date) (Window, bool) {
	active := Window{Start: MonthOf(start.Time), End: w.End}
	if !end.IsEmpty() {
		active.End = MonthOf(end.Time)
	}
	return w.Intersect(active)
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}
