package api

import (
	"encoding/json"
	"net/http"

	"github.com/codeops-dev/registry/pkg/apperrors"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the error kind onto an HTTP status and emits the
// envelope. Internal errors hide their message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("internal error")
		message = "internal server error"
	}
	writeJSON(w, status, errorBody{Status: status, Message: message})
}

// decode parses the JSON body into dst and runs its validation tags.
// Unknown fields are tolerated; malformed JSON and tag violations are
// 400s.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return apperrors.Validationf("invalid request: %v", err)
	}
	return nil
}
