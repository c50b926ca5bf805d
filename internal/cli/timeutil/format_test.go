package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{5*time.Minute + 3*time.Second, "5m 3s"},
		{2*time.Hour + 15*time.Second, "2h 0m 15s"},
		{72*time.Hour + 30*time.Minute + 15*time.Second, "3d 0h 30m 15s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "1h 1m 1s", FormatUptime("1h1m1s"))
	assert.Equal(t, "soon", FormatUptime("soon"))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ts.Local().Format(LocalTimeFormat), FormatTime(ts.Format(time.RFC3339)))
	assert.Equal(t, "yesterday", FormatTime("yesterday"))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "1m 30s ago", FormatAge(now.Add(-90*time.Second), now))
	assert.Equal(t, "-", FormatAge(time.Time{}, now))
}
