package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelative(t *testing.T) {
	tests := []struct {
		expr string
		want time.Duration
	}{
		{"1y", 365 * 24 * time.Hour},
		{"365d", 365 * 24 * time.Hour},
		{"6mo", 180 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"10d", 240 * time.Hour},
		{"24h", 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"45s", 45 * time.Second},
		// Compound expressions accumulate.
		{"1y6mo", (365 + 180) * 24 * time.Hour},
		{"1w2d", 9 * 24 * time.Hour},
		// "mo" is months, "m" is minutes; longest unit match wins.
		{"1mo", 30 * 24 * time.Hour},
		{"1m", time.Minute},
		// Case and surrounding space are tolerated.
		{" 2W ", 14 * 24 * time.Hour},
		{"1Y", 365 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseRelative(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRelative_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"   ",
		"abc",
		"1",    // missing unit
		"1x",   // unknown unit
		"mo1",  // unit before number
		"1.5y", // no fractional amounts
		"1y6",  // trailing number without unit
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseRelative(expr)
			assert.Error(t, err)
		})
	}
}

func TestFloorDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

	got, err := FloorDate("10d", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)),
		"floor is truncated to the UTC calendar date, got %v", got)

	// "1y" and "365d" agree by construction.
	a, err := FloorDate("1y", now)
	require.NoError(t, err)
	b, err := FloorDate("365d", now)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, err = FloorDate("bogus", now)
	assert.Error(t, err)
}
