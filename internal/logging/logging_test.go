package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("json", false, &buf)

	logger.Info("hello", "region", "North")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "North", entry["region"])
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var quiet, loud bytes.Buffer

	New("text", false, &quiet).Debug("hidden")
	New("text", true, &loud).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "shown")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New("text", false, &buf)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestLogHTTPRequest_Levels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success is debug", status: 200, wantLevel: "DEBUG"},
		{name: "server error is warn", status: 502, wantLevel: "WARN"},
		{name: "transport failure is warn", status: 0, wantLevel: "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New("json", true, &buf)

			LogHTTPRequest(logger, "POST", "/region-stops", tt.status, 12.5)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "/region-stops", entry["endpoint"])
		})
	}
}

func TestSafeCloseWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New("text", false, &buf)

	SafeCloseWithLogging(failingCloser{err: errors.New("boom")}, logger, "response_body")
	assert.Contains(t, buf.String(), "failed to close response_body")

	buf.Reset()
	SafeCloseWithLogging(failingCloser{}, logger, "response_body")
	assert.Empty(t, buf.String())
}
