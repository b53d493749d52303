package schedule_test

import (
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "daily at midnight", expr: "0 0 * * *"},
		{name: "weekdays", expr: "30 9 * * 1-5"},
		{name: "seconds field", expr: "0 0 0 * * *"},
		{name: "seconds with question mark", expr: "0 0 1 * * ?"},
		{name: "every five minutes with seconds", expr: "0 */5 * * * *"},
		{name: "named weekdays", expr: "0 0 9 * * MON-FRI"},
		{name: "daily descriptor", expr: "@daily"},
		{name: "every descriptor", expr: "@every 1h30m"},
		{name: "empty", expr: "", wantErr: true},
		{name: "seven fields", expr: "0 0 0 * * * 2025", wantErr: true},
		{name: "unknown descriptor", expr: "@fortnightly", wantErr: true},
		{name: "garbage", expr: "not a cron", wantErr: true},
		{name: "out of range minute", expr: "61 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := schedule.Validate(tt.expr)
			if tt.wantErr {
				require.ErrorIs(t, err, schedule.ErrInvalidCron)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)

	next, err := schedule.Next("0 12 * * *", "UTC", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), next)

	next, err = schedule.Next("0 12 * * *", "America/Sao_Paulo", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC), next)

	next, err = schedule.Next("0 12 * * *", "Not/AZone", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), next, "unknown zone falls back to UTC")

	next, err = schedule.Next("30 0 12 * * ?", "UTC", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 30, 0, time.UTC), next)

	next, err = schedule.Next("@daily", "UTC", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), next)

	_, err = schedule.Next("bad", "UTC", from)
	require.ErrorIs(t, err, schedule.ErrInvalidCron)
}

func TestIsDue(t *testing.T) {
	t.Parallel()

	last := time.Date(2025, 3, 10, 10, 0, 30, 0, time.UTC)

	due, err := schedule.IsDue("* * * * *", "UTC", last, last.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = schedule.IsDue("0 * * * *", "UTC", last, last.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, due)
}
