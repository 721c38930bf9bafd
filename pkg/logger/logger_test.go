package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xhsdl/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "xhsdl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestWithFieldsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithField("run_id", "r1").InfoWithFields("cycle", map[string]interface{}{
		"new_records": 3,
		"converged":   false,
	})

	out := buf.String()
	assert.Contains(t, out, `"app":"xhsdl"`)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"new_records":3`)
	assert.Contains(t, out, `"converged":false`)
	assert.Contains(t, out, `"message":"cycle"`)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, zerolog.InfoLevel)
	_ = parent.WithField("child", true)

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.WithError(errors.New("boom")).Error("failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)

	assert.Same(t, l, l.WithError(nil))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("hidden")
	l.Warn("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestTestLoggerCapturesFields(t *testing.T) {
	tl := NewTestLogger()

	LogBatchItem(tl.WithField("list", "cats"), "run", "abc", "skipped", 0, errors.New("timeout"))
	LogCycle(tl, "run", 2, 0, 5, 1)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "cats", msgs[0].Fields["list"])
	assert.Equal(t, "abc", msgs[0].Fields["item_id"])
	assert.EqualError(t, msgs[0].Error, "timeout")
	assert.Equal(t, 1, msgs[1].Fields["empty_cycles"])

	assert.True(t, tl.HasMessage("Collection cycle finished"))
	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}
