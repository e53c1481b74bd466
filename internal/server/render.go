package server

import (
	"encoding/json"
	"net/http"

	dgerr "github.com/dshills/docgraph/pkg/errors"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to. Server-side
// failures are logged in full and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dgerr.HTTPStatus(err)
	code := dgerr.CodeOf(err)
	if code == "" {
		code = dgerr.CodeServerInternalFailure
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("code", string(code)).
			Interface("fields", dgerr.FieldsOf(err)).
			Msg("request failed")
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(code),
		Message: dgerr.SafeMessage(err),
	}})
}
