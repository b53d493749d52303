// Package monitor tracks task errors, retry policies and runtime metrics.
package monitor

import (
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"
)

const maxRecentErrors = 100

// ErrorRecord is a single reported failure.
type ErrorRecord struct {
	TaskType      string         `json:"task_type"`
	ExceptionType string         `json:"exception_type"`
	Message       string         `json:"message"`
	Timestamp     time.Time      `json:"timestamp"`
	Context       map[string]any `json:"context,omitempty"`
}

// TaskErrorStats aggregates the failures of one task type.
type TaskErrorStats struct {
	TaskType    string           `json:"task_type"`
	TotalErrors int64            `json:"total_errors"`
	ErrorCounts map[string]int64 `json:"error_counts"`
	FirstError  time.Time        `json:"first_error"`
	LastError   time.Time        `json:"last_error"`
}

// Summary is the aggregated view over every task type.
type Summary struct {
	TotalErrors         int64            `json:"total_errors"`
	TaskTypesWithErrors int              `json:"task_types_with_errors"`
	ErrorsByTaskType    map[string]int64 `json:"errors_by_task_type"`
	RecentErrors        []ErrorRecord    `json:"recent_errors"`
}

// Health reports the state of the monitor itself.
type Health struct {
	Status             string `json:"status"`
	TotalTaskTypes     int    `json:"total_task_types"`
	TotalErrorsTracked int64  `json:"total_errors_tracked"`
}

// ErrorMonitor keeps per task type statistics and a bounded window of recent errors.
// It never alters the control flow of whoever reports to it.
type ErrorMonitor struct {
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu     sync.RWMutex
	stats  map[string]*TaskErrorStats
	recent map[string][]ErrorRecord
}

// NewErrorMonitor creates a monitor. metrics may be nil.
func NewErrorMonitor(logger *slog.Logger, metrics *Metrics) *ErrorMonitor {
	return &ErrorMonitor{
		logger:  logger.With("module", "error_monitor"),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		stats:   make(map[string]*TaskErrorStats),
		recent:  make(map[string][]ErrorRecord),
	}
}

// Record stores a failure of taskType.
func (m *ErrorMonitor) Record(taskType, exceptionType, message string, context map[string]any) {
	now := m.now()

	m.mu.Lock()

	stats, ok := m.stats[taskType]
	if !ok {
		stats = &TaskErrorStats{
			TaskType:    taskType,
			ErrorCounts: make(map[string]int64),
			FirstError:  now,
		}
		m.stats[taskType] = stats
	}

	stats.TotalErrors++
	stats.ErrorCounts[exceptionType]++
	stats.LastError = now

	records := append(m.recent[taskType], ErrorRecord{
		TaskType:      taskType,
		ExceptionType: exceptionType,
		Message:       message,
		Timestamp:     now,
		Context:       maps.Clone(context),
	})
	if len(records) > maxRecentErrors {
		records = records[len(records)-maxRecentErrors:]
	}

	m.recent[taskType] = records

	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TaskErrors.WithLabelValues(taskType).Inc()
	}

	m.logger.Error("task error recorded",
		"task_type", taskType,
		"exception_type", exceptionType,
		"error", message)
}

// Stats returns a copy of the statistics for taskType.
func (m *ErrorMonitor) Stats(taskType string) (TaskErrorStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[taskType]
	if !ok {
		return TaskErrorStats{}, false
	}

	return copyStats(stats), true
}

// AllStats returns a copy of every task type's statistics.
func (m *ErrorMonitor) AllStats() map[string]TaskErrorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]TaskErrorStats, len(m.stats))
	for taskType, stats := range m.stats {
		all[taskType] = copyStats(stats)
	}

	return all
}

// RecentErrors returns up to limit of the latest errors of taskType in the order they were recorded.
func (m *ErrorMonitor) RecentErrors(taskType string, limit int) []ErrorRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.recent[taskType]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	result := make([]ErrorRecord, limit)
	copy(result, records[len(records)-limit:])

	return result
}

// AllRecentErrors returns up to limit errors across task types, newest first.
func (m *ErrorMonitor) AllRecentErrors(limit int) []ErrorRecord {
	m.mu.RLock()

	all := make([]ErrorRecord, 0)
	for _, records := range m.recent {
		all = append(all, records...)
	}

	m.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}

	return all
}

// Summary aggregates totals with the ten most recent errors.
func (m *ErrorMonitor) Summary() Summary {
	all := m.AllStats()

	summary := Summary{
		ErrorsByTaskType: make(map[string]int64, len(all)),
		RecentErrors:     m.AllRecentErrors(10),
	}

	for taskType, stats := range all {
		summary.TotalErrors += stats.TotalErrors
		summary.ErrorsByTaskType[taskType] = stats.TotalErrors

		if stats.TotalErrors > 0 {
			summary.TaskTypesWithErrors++
		}
	}

	return summary
}

func (m *ErrorMonitor) Health() Health {
	all := m.AllStats()

	health := Health{Status: "UP", TotalTaskTypes: len(all)}
	for _, stats := range all {
		health.TotalErrorsTracked += stats.TotalErrors
	}

	return health
}

// Clear drops every statistic and recent error.
func (m *ErrorMonitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = make(map[string]*TaskErrorStats)
	m.recent = make(map[string][]ErrorRecord)

	m.logger.Info("error statistics cleared")
}

func copyStats(stats *TaskErrorStats) TaskErrorStats {
	cp := *stats
	cp.ErrorCounts = maps.Clone(stats.ErrorCounts)

	return cp
}
