package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nainya/metacatalog/pkg/metadata"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error classes to HTTP status codes. Internal failures are
// logged and reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case metadata.ErrBadRequest.Has(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case metadata.ErrNotFound.Has(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.HTTPLogger(routePattern(r)).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decode reads a JSON request body into v. An empty body is rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return metadata.ErrBadRequest.New("request body is empty")
		}
		return metadata.ErrBadRequest.New("invalid request body: %v", err)
	}
	return nil
}

// decodeOptional is decode for bodies that may be omitted.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return metadata.ErrBadRequest.New("invalid request body: %v", err)
}
