package server

import (
	"encoding/json"
	"errors"
	"net/http"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its HTTP status. Errors outside the taxonomy are
// logged and reported as internal errors without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var qe *qerr.QueryError
	if !errors.As(err, &qe) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: qerr.CodeInternal, Message: "internal server error"})
		return
	}

	status := qerr.HTTPStatus(qe.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	msg := qe.Message
	if qe.Code == qerr.CodeInternal && qe.Cause != nil {
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: qe.Code, Message: msg, Details: qe.Details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return qerr.New(qerr.CodeInvalidRequest, "request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return qerr.Wrapf(err, qerr.CodeInvalidRequest, "invalid request body: %v", err)
	}
	return nil
}
