package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
	"github.com/hupe1980/personasim/runner"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error *core.ErrorDescriptor `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", "error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, d := classify(err)
	s.respondJSON(w, status, errorBody{Error: d})
}

// classify maps an error to an HTTP status and descriptor.
func classify(err error) (int, *core.ErrorDescriptor) {
	d := core.Describe(err)
	var cfgErr *config.ConfigError
	switch {
	case errors.Is(err, runner.ErrInvalidRequest), errors.Is(err, errBadRequest):
		d.Kind = core.KindInvalidRequest
		return http.StatusBadRequest, d
	case errors.Is(err, errImportUnavailable):
		d.Kind = core.KindUnavailable
		return http.StatusServiceUnavailable, d
	case errors.Is(err, persona.ErrNotFound), errors.Is(err, config.ErrNotFound), errors.Is(err, results.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		d.Kind = core.KindNotFound
		return http.StatusNotFound, d
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity, d
	case d.Kind == core.KindCanceled:
		return 499, d
	default:
		return http.StatusInternalServerError, d
	}
}
