package c2c

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Granularity is a sampling resolution supported by a provider's time-series
// query endpoint.
type Granularity struct {
	// Name is the value sent to the provider.
	Name string
	// MaxSpan is the longest query range, inclusive, this granularity is
	// used for.
	MaxSpan time.Duration
	// Interval is the spacing between samples, when known.
	Interval time.Duration
}

// GranularityTable is ordered from finest to coarsest and must not be empty.
type GranularityTable []Granularity

// ForQueryDateRange returns the first granularity whose MaxSpan covers
// end - start. Ranges longer than every MaxSpan get the coarsest entry.
func (t GranularityTable) ForQueryDateRange(start, end time.Time) Granularity {
	d := end.Sub(start)
	for _, g := range t {
		if d <= g.MaxSpan {
			return g
		}
	}
	return t.Coarsest()
}

// Coarsest returns the last entry of the table.
func (t GranularityTable) Coarsest() Granularity {
	return t[len(t)-1]
}
