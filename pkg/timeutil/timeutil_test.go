package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRelative(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "just now", FormatRelative(now))
	assert.Equal(t, "5 min ago", FormatRelative(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour ago", FormatRelative(now.Add(-90*time.Minute)))
	assert.Equal(t, "3 hours ago", FormatRelative(now.Add(-3*time.Hour)))
	assert.Equal(t, "yesterday", FormatRelative(now.Add(-30*time.Hour)))
	assert.Equal(t, "3 days ago", FormatRelative(now.Add(-3*24*time.Hour)))
	assert.Equal(t, "2 weeks ago", FormatRelative(now.Add(-15*24*time.Hour)))
	assert.Equal(t, "1 month ago", FormatRelative(now.Add(-35*24*time.Hour)))

	// Future timestamps clamp to the floor instead of going negative.
	assert.Equal(t, "just now", FormatRelative(now.Add(time.Hour)))
}

func TestDaysBetween(t *testing.T) {
	d1 := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 12, 0, 10, 0, 0, time.UTC)

	assert.Equal(t, 2, DaysBetween(d1, d2))
	assert.Equal(t, 2, DaysBetween(d2, d1))
	assert.Equal(t, 0, DaysBetween(d1, d1))
}

func TestIsSameDay(t *testing.T) {
	morning := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	next := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	assert.True(t, IsSameDay(morning, night))
	assert.False(t, IsSameDay(night, next))
}
