package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogCycle logs one collection cycle
func LogCycle(l Logger, runID string, cycle, newRecords, total, emptyCycles int) {
	l.DebugWithFields("Collection cycle finished", map[string]interface{}{
		"run_id":       runID,
		"cycle":        cycle,
		"new_records":  newRecords,
		"total":        total,
		"empty_cycles": emptyCycles,
	})
}

// LogRunFinished logs the terminal state of a collection run
func LogRunFinished(l Logger, runID, state string, cycles, total int, elapsed time.Duration) {
	l.InfoWithFields("Collection run finished", map[string]interface{}{
		"run_id":   runID,
		"state":    state,
		"cycles":   cycles,
		"total":    total,
		"duration": elapsed,
	})
}

// LogBatchItem logs the outcome of one batch item
func LogBatchItem(l Logger, runID, itemID, outcome string, comments int, err error) {
	fields := map[string]interface{}{
		"run_id":   runID,
		"item_id":  itemID,
		"outcome":  outcome,
		"comments": comments,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Batch item skipped", fields)
		return
	}
	l.InfoWithFields("Batch item processed", fields)
}

// LogFetch logs an asset fetch
func LogFetch(l Logger, url string, status int, size int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"url":      url,
		"status":   status,
		"size":     size,
		"duration": duration,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Fetch failed", fields)
		return
	}
	l.DebugWithFields("Fetch completed", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", config)
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.InfoWithFields("Component stopped", map[string]interface{}{
		"component": component,
		"reason":    reason,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
