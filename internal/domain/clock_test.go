package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidLotDuration(t *testing.T) {
	valid := []string{"00:01", "0:30", "01:00", "9:59", "19:05", "23:59"}
	for _, s := range valid {
		require.True(t, ValidLotDuration(s), s)
	}

	invalid := []string{"", "24:00", "12:60", "1:5", "01:00:00", "90 minutes", "-1:00", "ab:cd"}
	for _, s := range invalid {
		require.False(t, ValidLotDuration(s), s)
	}
}

func TestParseLotDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"00:01": time.Minute,
		"0:30":  30 * time.Minute,
		"01:00": time.Hour,
		"23:59": 23*time.Hour + 59*time.Minute,
	}
	for s, want := range cases {
		got, err := ParseLotDuration(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got, s)
	}

	_, err := ParseLotDuration("24:00")
	require.Error(t, err)
}

func TestCombineStartDateTime(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// The date may arrive in any zone; the wall clock applies in the
	// business zone.
	startDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	got, err := CombineStartDateTime(startDate, "14:30", loc)
	require.NoError(t, err)

	require.Equal(t, 2026, got.Year())
	require.Equal(t, time.March, got.Month())
	require.Equal(t, 14, got.Day())
	require.Equal(t, 14, got.Hour())
	require.Equal(t, 30, got.Minute())
	require.Equal(t, loc, got.Location())

	_, err = CombineStartDateTime(startDate, "25:00", loc)
	require.Error(t, err)

	_, err = CombineStartDateTime(startDate, "half past two", loc)
	require.Error(t, err)
}
