// Package errors provides explicit, human-readable error types for the catalog API.
// Every error carries a Code that decides how it surfaces: an HTTP status for
// the server and an exit code for the CLI.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// CatalogError is the base error type for all catalog errors.
type CatalogError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of an error.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeDatabase   ErrorCode = 2
	CodeConfig     ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *CatalogError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// ErrMissingParameter is returned when a required query parameter is absent.
type ErrMissingParameter struct {
	CatalogError
	Parameter string
}

// NewMissingParameter creates a new ErrMissingParameter.
func NewMissingParameter(param string) *ErrMissingParameter {
	return &ErrMissingParameter{
		CatalogError: CatalogError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("%s query parameter is required", param),
			Suggestion: fmt.Sprintf("add ?%s=<value> to the request", param),
		},
		Parameter: param,
	}
}

// ErrQueryFailed is returned when a catalog statement fails at any stage:
// acquiring a connection, executing, scanning or iterating rows.
type ErrQueryFailed struct {
	CatalogError
	Statement string
}

// NewQueryFailed creates a new ErrQueryFailed.
func NewQueryFailed(statement string, cause error) *ErrQueryFailed {
	return &ErrQueryFailed{
		CatalogError: CatalogError{
			Code:       CodeDatabase,
			Message:    fmt.Sprintf("query %s failed", statement),
			Suggestion: "check database connectivity with 'catalog-api check'",
			Cause:      cause,
		},
		Statement: statement,
	}
}

// ErrDatabaseUnavailable is returned when the database cannot be reached.
type ErrDatabaseUnavailable struct {
	CatalogError
}

// NewDatabaseUnavailable creates a new ErrDatabaseUnavailable.
func NewDatabaseUnavailable(reason string) *ErrDatabaseUnavailable {
	return &ErrDatabaseUnavailable{
		CatalogError: CatalogError{
			Code:       CodeDatabase,
			Message:    "database unavailable",
			Reason:     reason,
			Suggestion: "verify DATABASE_URL and that the database accepts connections",
		},
	}
}

// WithCause attaches the underlying driver error.
func (e *ErrDatabaseUnavailable) WithCause(cause error) *ErrDatabaseUnavailable {
	e.Cause = cause
	return e
}

// ErrInvalidConfig is returned when configuration is missing or malformed.
type ErrInvalidConfig struct {
	CatalogError
	Field string
}

// NewInvalidConfig creates a new ErrInvalidConfig.
func NewInvalidConfig(field, reason string) *ErrInvalidConfig {
	return &ErrInvalidConfig{
		CatalogError: CatalogError{
			Code:       CodeConfig,
			Message:    "invalid configuration",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "see 'catalog-api config' for the effective configuration",
		},
		Field: field,
	}
}

// ErrInvalidStatement is returned when a catalog statement would not be a
// single read-only query.
type ErrInvalidStatement struct {
	CatalogError
	Statement string
}

// NewInvalidStatement creates a new ErrInvalidStatement.
func NewInvalidStatement(statement, reason string) *ErrInvalidStatement {
	return &ErrInvalidStatement{
		CatalogError: CatalogError{
			Code:    CodeInternal,
			Message: fmt.Sprintf("invalid catalog statement %s", statement),
			Reason:  reason,
		},
		Statement: statement,
	}
}

// NewInternal wraps an unexpected failure.
func NewInternal(message string, cause error) *CatalogError {
	return &CatalogError{
		Code:    CodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first CatalogError in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	if ce := asCatalogError(err); ce != nil {
		return ce.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code the server responds with.
func HTTPStatus(err error) int {
	if CodeOf(err) == CodeValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the single-line message placed in HTTP error bodies:
// the error's Message followed by its cause, without reason or suggestion.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	ce := asCatalogError(err)
	if ce == nil {
		return err.Error()
	}
	if ce.Cause != nil {
		return fmt.Sprintf("%s: %v", ce.Message, ce.Cause)
	}
	if ce.Reason != "" {
		return fmt.Sprintf("%s: %s", ce.Message, ce.Reason)
	}
	return ce.Message
}

func asCatalogError(err error) *CatalogError {
	var (
		missing     *ErrMissingParameter
		queryFailed *ErrQueryFailed
		unavailable *ErrDatabaseUnavailable
		invalidCfg  *ErrInvalidConfig
		invalidStmt *ErrInvalidStatement
		base        *CatalogError
	)
	switch {
	case stderrors.As(err, &missing):
		return &missing.CatalogError
	case stderrors.As(err, &queryFailed):
		return &queryFailed.CatalogError
	case stderrors.As(err, &unavailable):
		return &unavailable.CatalogError
	case stderrors.As(err, &invalidCfg):
		return &invalidCfg.CatalogError
	case stderrors.As(err, &invalidStmt):
		return &invalidStmt.CatalogError
	case stderrors.As(err, &base):
		return base
	}
	return nil
}
