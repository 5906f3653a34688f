package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthStartAndTruncate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	v := time.Date(2025, 2, 1, 3, 0, 0, 0, ist) // 2025-01-31T21:30Z

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), MonthStart(v))
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), TruncateDay(v))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, DaysInMonth(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 31, DaysInMonth(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestParseDateAndMonth(t *testing.T) {
	d, err := ParseDate("2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-01-15T23:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), d)

	m, err := ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), m)

	m, err = ParseMonth("2025-03-17")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), m)

	_, err = ParseDate("15/01/2025")
	assert.Error(t, err)
}
