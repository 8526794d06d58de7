package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"debug", slog.LevelDebug, false},
		{"trace", LevelTrace, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogWithFieldsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(os.Stderr, os.Getenv("LOG_FORMAT")) })

	LogInfoWithFields("webhook", "event received", map[string]any{"type": "invoice.payment_failed"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "event received", entry["msg"])
	assert.Equal(t, "webhook", entry["component"])
	assert.Equal(t, "invoice.payment_failed", entry["type"])
	assert.Contains(t, entry, "timestamp")
}

func TestSetLogLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLogLevel("verbose"))
}
