package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearings-api/catalog/internal/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out), "log line: %s", buf.String())
	return out
}

func TestQueryLogger_LogsSuccess(t *testing.T) {
	var buf bytes.Buffer
	ql := NewQueryLogger(NewLoggerTo(&buf, "json", zerolog.InfoLevel))

	err := ql.LogQuery(context.Background(), QueryLogEntry{
		RequestID:     "req-1",
		Route:         "/bearings",
		Statement:     "list_bearings",
		Rows:          12,
		ExecutionTime: 15 * time.Millisecond,
		Outcome:       OutcomeSuccess,
	})
	require.NoError(t, err)

	line := decodeLine(t, &buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "catalog_query", line["message"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "list_bearings", line["statement"])
	assert.EqualValues(t, 12, line["rows"])
	assert.EqualValues(t, 15, line["execution_time_ms"])
	assert.Equal(t, "catalog-api", line["service"])
	assert.NotContains(t, line, "error")
}

func TestQueryLogger_ErrorLevels(t *testing.T) {
	tests := []struct {
		outcome string
		level   string
	}{
		{OutcomeError, "error"},
		{OutcomeRejected, "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			var buf bytes.Buffer
			ql := NewQueryLogger(NewLoggerTo(&buf, "json", zerolog.DebugLevel))

			require.NoError(t, ql.LogQuery(context.Background(), QueryLogEntry{
				Route:     "/products",
				Statement: "list_products_by_category",
				Outcome:   tt.outcome,
				Error:     "boom",
			}))

			line := decodeLine(t, &buf)
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, "boom", line["error"])
		})
	}
}

func TestQueryLogger_RejectsInvalidEntries(t *testing.T) {
	ql := NewQueryLogger(zerolog.Nop())
	ctx := context.Background()

	assert.Error(t, ql.LogQuery(ctx, QueryLogEntry{Statement: "list_bearings", Outcome: OutcomeSuccess}), "missing route")
	assert.Error(t, ql.LogQuery(ctx, QueryLogEntry{Route: "/bearings", Outcome: OutcomeSuccess}), "missing statement")
	assert.Error(t, ql.LogQuery(ctx, QueryLogEntry{Route: "/bearings", Statement: "list_bearings"}), "missing outcome")
	assert.Error(t, ql.LogQuery(ctx, QueryLogEntry{
		Route: "/bearings", Statement: "list_bearings", Outcome: OutcomeSuccess, ExecutionTime: -time.Second,
	}), "negative duration")

	assert.NoError(t, ql.LogQuery(ctx, QueryLogEntry{Route: "/products", Outcome: OutcomeRejected}),
		"rejected entries need no statement")
}

func TestQueryLogger_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewQueryLogger(zerolog.Nop()).LogQuery(ctx, QueryLogEntry{
		Route: "/bearings", Statement: "list_bearings", Outcome: OutcomeSuccess,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.log")
	logger, closer, err := NewLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, closer, err := NewLogger(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
	assert.NotNil(t, closer)
}
