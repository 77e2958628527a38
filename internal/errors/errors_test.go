package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingParameter_MapsToBadRequest(t *testing.T) {
	err := NewMissingParameter("category")

	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Equal(t, "category query parameter is required", PublicMessage(err))
	assert.Equal(t, "category", err.Parameter)
}

func TestQueryFailed_CarriesDriverMessage(t *testing.T) {
	cause := stderrors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	err := NewQueryFailed("list_bearings", cause)

	assert.Equal(t, CodeDatabase, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "query list_bearings failed: "+cause.Error(), PublicMessage(err))
	assert.True(t, stderrors.Is(err, cause), "cause must stay reachable through Unwrap")
}

func TestCatalogError_ErrorIncludesReasonAndSuggestion(t *testing.T) {
	err := NewInvalidConfig("database.url", "is required")

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "invalid configuration"))
	assert.Contains(t, msg, "Reason: field 'database.url': is required")
	assert.Contains(t, msg, "Suggestion: ")
	assert.Equal(t, "invalid configuration: field 'database.url': is required", PublicMessage(err))
}

func TestCodeOf_FindsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("serving /bearings: %w", NewQueryFailed("list_bearings", stderrors.New("boom")))
	require.Equal(t, CodeDatabase, CodeOf(wrapped))

	unavailable := NewDatabaseUnavailable("ping failed").WithCause(stderrors.New("timeout"))
	assert.Equal(t, CodeDatabase, CodeOf(unavailable))
	assert.Equal(t, "database unavailable: timeout", PublicMessage(unavailable))
}

func TestPlainErrors_AreInternal(t *testing.T) {
	err := stderrors.New("unexpected")

	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "unexpected", PublicMessage(err))
	assert.Equal(t, "", PublicMessage(nil))
}
