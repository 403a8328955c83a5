package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(t *testing.T, start, end string) Window {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return Window{Start: s, End: e}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := window(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
	b := window(t, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")
	c := window(t, "2026-03-02T09:30:00Z", "2026-03-02T10:30:00Z")

	assert.False(t, a.Overlaps(b), "touching endpoints must not overlap")
	assert.False(t, b.Overlaps(a))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}

func TestSubtractNestedProducesTwoResiduals(t *testing.T) {
	slot := window(t, "2026-03-02T09:00:00Z", "2026-03-02T12:00:00Z")
	lesson := window(t, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")

	out := slot.Subtract(lesson)
	require.Len(t, out, 2)
	assert.Equal(t, window(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), out[0])
	assert.Equal(t, window(t, "2026-03-02T11:00:00Z", "2026-03-02T12:00:00Z"), out[1])
}

func TestSubtractEdgeAndCover(t *testing.T) {
	slot := window(t, "2026-03-02T09:00:00Z", "2026-03-02T12:00:00Z")

	leading := slot.Subtract(window(t, "2026-03-02T08:00:00Z", "2026-03-02T10:00:00Z"))
	require.Len(t, leading, 1)
	assert.Equal(t, window(t, "2026-03-02T10:00:00Z", "2026-03-02T12:00:00Z"), leading[0])

	trailing := slot.Subtract(window(t, "2026-03-02T11:00:00Z", "2026-03-02T13:00:00Z"))
	require.Len(t, trailing, 1)
	assert.Equal(t, window(t, "2026-03-02T09:00:00Z", "2026-03-02T11:00:00Z"), trailing[0])

	covered := slot.Subtract(window(t, "2026-03-02T08:00:00Z", "2026-03-02T13:00:00Z"))
	assert.Empty(t, covered)

	disjoint := slot.Subtract(window(t, "2026-03-02T13:00:00Z", "2026-03-02T14:00:00Z"))
	require.Len(t, disjoint, 1)
	assert.Equal(t, slot, disjoint[0])
}

func TestSubtractAllMultipleBusy(t *testing.T) {
	slot := window(t, "2026-03-02T09:00:00Z", "2026-03-02T13:00:00Z")
	busy := []Window{
		window(t, "2026-03-02T09:30:00Z", "2026-03-02T10:00:00Z"),
		window(t, "2026-03-02T11:00:00Z", "2026-03-02T12:00:00Z"),
	}

	out := SubtractAll(slot, busy)
	require.Len(t, out, 3)
	assert.Equal(t, window(t, "2026-03-02T09:00:00Z", "2026-03-02T09:30:00Z"), out[0])
	assert.Equal(t, window(t, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z"), out[1])
	assert.Equal(t, window(t, "2026-03-02T12:00:00Z", "2026-03-02T13:00:00Z"), out[2])
}

func TestPad(t *testing.T) {
	w := window(t, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")
	padded := w.Pad(15*time.Minute, 15*time.Minute)
	assert.Equal(t, window(t, "2026-03-02T09:45:00Z", "2026-03-02T11:15:00Z"), padded)
}

func TestParseClockAndDate(t *testing.T) {
	h, m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)

	_, err = ParseDate("2026-03-02")
	require.NoError(t, err)
	_, err = ParseDate("02-03-2026")
	assert.Error(t, err)
}

func TestLoadZoneRejectsUnknown(t *testing.T) {
	_, err := LoadZone("Mars/Olympus_Mons")
	assert.Error(t, err)

	loc, err := LoadZone("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

// A 09:00-10:00 teacher-local window keeps its 60 minute duration when the
// viewer zone sits on the other side of a DST transition.
func TestSpanDurationAcrossSpringForward(t *testing.T) {
	berlin, err := LoadZone("Europe/Berlin")
	require.NoError(t, err)
	newYork, err := LoadZone("America/New_York")
	require.NoError(t, err)

	// 2026-03-29 is the EU spring-forward date; the US moved on 03-08.
	w, err := Span("2026-03-29", "09:00", "10:00", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, w.Duration())

	viewerStart := w.Start.In(newYork)
	viewerEnd := w.End.In(newYork)
	assert.Equal(t, time.Hour, viewerEnd.Sub(viewerStart))
	// Berlin is CEST (UTC+2) after the jump, New York already EDT (UTC-4).
	assert.Equal(t, "03:00", viewerStart.Format("15:04"))
}

func TestConvertFallBack(t *testing.T) {
	berlin, err := LoadZone("Europe/Berlin")
	require.NoError(t, err)
	london, err := LoadZone("Europe/London")
	require.NoError(t, err)

	// Both zones fall back on 2026-10-25; offsets stay one hour apart.
	got, err := Convert("2026-10-25", "15:00", berlin, london)
	require.NoError(t, err)
	assert.Equal(t, "14:00", got.Format("15:04"))
}
