package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Query outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// QueryLogEntry describes one catalog request that reached, or was refused
// before, the database.
type QueryLogEntry struct {
	// RequestID correlates the entry with the access log.
	RequestID string

	// Route is the HTTP path that triggered the query.
	Route string

	// Statement is the catalog statement name, e.g. "list_bearings".
	// Empty when the request was rejected before a statement was chosen.
	Statement string

	// Rows is the number of rows returned. Zero on failure.
	Rows int

	// ExecutionTime is how long the query took, including row scanning.
	ExecutionTime time.Duration

	// Outcome is one of OutcomeSuccess, OutcomeError, OutcomeRejected.
	Outcome string

	// Error is the failure message; empty on success.
	Error string
}

// Validate checks that all required fields are present.
func (e *QueryLogEntry) Validate() error {
	if e.Route == "" {
		return fmt.Errorf("observability: route is required")
	}
	if e.Outcome == "" {
		return fmt.Errorf("observability: outcome is required")
	}
	if e.Outcome != OutcomeRejected && e.Statement == "" {
		return fmt.Errorf("observability: statement is required")
	}
	if e.ExecutionTime < 0 {
		return fmt.Errorf("observability: execution_time cannot be negative")
	}
	return nil
}

// QueryLogger records catalog query executions.
type QueryLogger interface {
	// LogQuery logs a query execution event.
	// Returns an error if the entry is invalid or the context is done.
	LogQuery(ctx context.Context, entry QueryLogEntry) error
}

// ZerologQueryLogger implements QueryLogger on top of a zerolog.Logger.
type ZerologQueryLogger struct {
	logger zerolog.Logger
}

// NewQueryLogger creates a query logger writing through logger.
func NewQueryLogger(logger zerolog.Logger) *ZerologQueryLogger {
	return &ZerologQueryLogger{logger: logger}
}

// LogQuery logs a query execution event. Failed queries log at error level,
// rejected requests at warn.
func (l *ZerologQueryLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	var event *zerolog.Event
	switch entry.Outcome {
	case OutcomeError:
		event = l.logger.Error()
	case OutcomeRejected:
		event = l.logger.Warn()
	default:
		event = l.logger.Info()
	}

	event.
		Str("request_id", entry.RequestID).
		Str("route", entry.Route).
		Str("statement", entry.Statement).
		Int("rows", entry.Rows).
		Int64("execution_time_ms", entry.ExecutionTime.Milliseconds()).
		Str("outcome", entry.Outcome)
	if entry.Error != "" {
		event.Str("error", entry.Error)
	}
	event.Msg("catalog_query")

	return nil
}

// NoopQueryLogger discards all entries.
type NoopQueryLogger struct{}

// NewNoopQueryLogger creates a new no-op query logger.
func NewNoopQueryLogger() *NoopQueryLogger {
	return &NoopQueryLogger{}
}

// LogQuery implements QueryLogger.
func (l *NoopQueryLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	return nil
}

var (
	_ QueryLogger = (*ZerologQueryLogger)(nil)
	_ QueryLogger = (*NoopQueryLogger)(nil)
)
