package monitor_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonitor(t *testing.T) (*monitor.ErrorMonitor, *monitor.Metrics) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	metrics := monitor.NewMetrics()

	return monitor.NewErrorMonitor(logger, metrics), metrics
}

func TestErrorMonitor_RecordAndStats(t *testing.T) {
	t.Parallel()

	m, metrics := newMonitor(t)

	m.Record("processing", "timeout", "took too long", map[string]any{"node_id": "n1"})
	m.Record("processing", "http", "502", nil)
	m.Record("processing", "timeout", "took too long again", nil)
	m.Record("output", "io", "disk full", nil)

	stats, ok := m.Stats("processing")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.TotalErrors)
	assert.Equal(t, int64(2), stats.ErrorCounts["timeout"])
	assert.Equal(t, int64(1), stats.ErrorCounts["http"])
	assert.False(t, stats.FirstError.After(stats.LastError))

	_, ok = m.Stats("unknown")
	assert.False(t, ok)

	assert.Len(t, m.AllStats(), 2)
	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `flowgraph_task_errors_total{task_type="processing"} 3`)

	recent := m.RecentErrors("processing", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "502", recent[0].Message)
	assert.Equal(t, "took too long again", recent[1].Message)

	assert.Empty(t, m.RecentErrors("unknown", 10))
}

func TestErrorMonitor_BoundsRecentErrors(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)

	for i := range 150 {
		m.Record("decision", "eval", fmt.Sprintf("error %d", i), nil)
	}

	recent := m.RecentErrors("decision", 1000)
	require.Len(t, recent, 100)
	assert.Equal(t, "error 50", recent[0].Message)
	assert.Equal(t, "error 149", recent[99].Message)

	stats, _ := m.Stats("decision")
	assert.Equal(t, int64(150), stats.TotalErrors)
}

func TestErrorMonitor_SummaryHealthClear(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)

	for i := range 7 {
		m.Record("processing", "x", fmt.Sprintf("p%d", i), nil)
		m.Record("output", "y", fmt.Sprintf("o%d", i), nil)
	}

	summary := m.Summary()
	assert.Equal(t, int64(14), summary.TotalErrors)
	assert.Equal(t, 2, summary.TaskTypesWithErrors)
	assert.Equal(t, int64(7), summary.ErrorsByTaskType["output"])
	assert.Len(t, summary.RecentErrors, 10)

	all := m.AllRecentErrors(-1)
	require.Len(t, all, 14)

	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "newest first")
	}

	health := m.Health()
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, 2, health.TotalTaskTypes)
	assert.Equal(t, int64(14), health.TotalErrorsTracked)

	m.Clear()

	assert.Empty(t, m.AllStats())
	assert.Empty(t, m.AllRecentErrors(10))
	assert.Equal(t, 0, m.Health().TotalTaskTypes)
}

func TestErrorMonitor_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 10 {
				m.Record("processing", "x", "boom", nil)
			}
		}()
	}

	wg.Wait()

	stats, ok := m.Stats("processing")
	require.True(t, ok)
	assert.Equal(t, int64(200), stats.TotalErrors)
	assert.Len(t, m.RecentErrors("processing", 0), 100)
}
