package timewindow

import (
	"fmt"
	"time"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// IsValid reports whether the window has positive length.
func (w Window) IsValid() bool {
	return w.End.After(w.Start)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two half-open windows intersect. Touching
// endpoints do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether other lies entirely within w.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// Pad widens the window by the given durations on each side.
func (w Window) Pad(before, after time.Duration) Window {
	return Window{Start: w.Start.Add(-before), End: w.End.Add(after)}
}

// Subtract removes busy from w and returns the surviving sub-windows:
// zero when busy covers w, one when busy clips an edge or misses entirely,
// two when busy is nested strictly inside w.
func (w Window) Subtract(busy Window) []Window {
	if !w.Overlaps(busy) {
		return []Window{w}
	}
	var out []Window
	if busy.Start.After(w.Start) {
		out = append(out, Window{Start: w.Start, End: busy.Start})
	}
	if busy.End.Before(w.End) {
		out = append(out, Window{Start: busy.End, End: w.End})
	}
	return out
}

// SubtractAll removes every busy interval from w.
func SubtractAll(w Window, busy []Window) []Window {
	remaining := []Window{w}
	for _, b := range busy {
		var next []Window
		for _, r := range remaining {
			next = append(next, r.Subtract(b)...)
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// ParseClock validates a civil wall-clock value in "15:04" form and returns
// hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseDate validates a civil date in "2006-01-02" form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a civil date in "2006-01-02" form.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// LoadZone resolves an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// At builds the instant for a civil date + wall-clock pair in the given
// zone. The calendar does the DST bookkeeping: a clock value that falls in a
// spring-forward gap is normalised forward by the zone rules.
func At(dateStr, clockStr string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(clockStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
}

// Span builds the window covering [startClock, endClock) on the given civil
// date in loc.
func Span(dateStr, startClock, endClock string, loc *time.Location) (Window, error) {
	start, err := At(dateStr, startClock, loc)
	if err != nil {
		return Window{}, err
	}
	end, err := At(dateStr, endClock, loc)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// Convert maps a civil date-time from one zone to another, returning the
// same instant expressed in the target zone. Both zones are real IANA zones,
// so offsets follow the tz database rather than fixed arithmetic.
func Convert(dateStr, clockStr string, from, to *time.Location) (time.Time, error) {
	instant, err := At(dateStr, clockStr, from)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(to), nil
}
