package server

import (
	"encoding/json"
	"net/http"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/pkg/api"
)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, api.ErrorResponse{Error: message})
}

// respondError writes err with the status its code maps to.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	writeError(w, cerrors.HTTPStatus(err), cerrors.PublicMessage(err))
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}
