package models

import (
	"fmt"
	"sort"
	"time"
)

// TimeSeriesFrame is a column-oriented daily time series. Dates are the row
// index; Numeric and Text columns are parallel to it. Invariant after
// preparation: Dates is contiguous (no missing calendar days) and every
// column has exactly len(Dates) values.
type TimeSeriesFrame struct {
	Dates   []time.Time
	Numeric map[string][]float64
	Text    map[string][]string
}

// NewTimeSeriesFrame creates an empty frame with initialized column maps.
func NewTimeSeriesFrame() *TimeSeriesFrame {
	return &TimeSeriesFrame{
		Numeric: make(map[string][]float64),
		Text:    make(map[string][]string),
	}
}

// Len returns the number of rows (days).
func (f *TimeSeriesFrame) Len() int { return len(f.Dates) }

// HasNumeric reports whether a numeric column exists.
func (f *TimeSeriesFrame) HasNumeric(name string) bool {
	_, ok := f.Numeric[name]
	return ok
}

// Column returns the named numeric column, or nil when absent.
func (f *TimeSeriesFrame) Column(name string) []float64 {
	return f.Numeric[name]
}

// NumericNames returns the numeric column names in sorted order.
func (f *TimeSeriesFrame) NumericNames() []string {
	names := make([]string, 0, len(f.Numeric))
	for name := range f.Numeric {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum returns the total of a numeric column, 0 when absent.
func (f *TimeSeriesFrame) Sum(name string) float64 {
	var total float64
	for _, v := range f.Numeric[name] {
		total += v
	}
	return total
}

// Clone returns a deep copy of the frame.
func (f *TimeSeriesFrame) Clone() *TimeSeriesFrame {
	out := &TimeSeriesFrame{
		Dates:   append([]time.Time(nil), f.Dates...),
		Numeric: make(map[string][]float64, len(f.Numeric)),
		Text:    make(map[string][]string, len(f.Text)),
	}
	for name, col := range f.Numeric {
		out.Numeric[name] = append([]float64(nil), col...)
	}
	for name, col := range f.Text {
		out.Text[name] = append([]string(nil), col...)
	}
	return out
}

// Window returns the sub-frame with dates in [start, end] inclusive. The
// returned columns share no backing storage with the receiver.
func (f *TimeSeriesFrame) Window(start, end time.Time) *TimeSeriesFrame {
	lo, hi := 0, len(f.Dates)
	for lo < hi && f.Dates[lo].Before(start) {
		lo++
	}
	for hi > lo && f.Dates[hi-1].After(end) {
		hi--
	}

	out := NewTimeSeriesFrame()
	out.Dates = append([]time.Time(nil), f.Dates[lo:hi]...)
	for name, col := range f.Numeric {
		out.Numeric[name] = append([]float64(nil), col[lo:hi]...)
	}
	for name, col := range f.Text {
		out.Text[name] = append([]string(nil), col[lo:hi]...)
	}
	return out
}

// Validate checks the frame invariants: contiguous daily dates and column
// lengths equal to the row count.
func (f *TimeSeriesFrame) Validate() error {
	n := f.Len()
	for i := 1; i < n; i++ {
		if got := f.Dates[i]; !got.Equal(f.Dates[i-1].AddDate(0, 0, 1)) {
			return fmt.Errorf("dates not contiguous at row %d: %s follows %s",
				i, got.Format("2006-01-02"), f.Dates[i-1].Format("2006-01-02"))
		}
	}
	for name, col := range f.Numeric {
		if len(col) != n {
			return fmt.Errorf("numeric column %s has %d values, expected %d", name, len(col), n)
		}
	}
	for name, col := range f.Text {
		if len(col) != n {
			return fmt.Errorf("text column %s has %d values, expected %d", name, len(col), n)
		}
	}
	return nil
}
