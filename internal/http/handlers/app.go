package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"renovai/server/internal/domain"
	"renovai/server/internal/infra"
	"renovai/server/internal/pipeline"
)

// Service is the pipeline surface the handlers drive.
type Service interface {
	Preprocess(ctx context.Context, photo []byte, filename string) (*pipeline.PreprocessResult, error)
	Analyze(ctx context.Context, jobID string, styleImages [][]byte) (*pipeline.AnalyzeResult, error)
	Transform(ctx context.Context, params pipeline.TransformParams) (*pipeline.TransformResult, error)
}

// App is the handler container.
type App struct {
	Pipeline Service
	Logger   infra.Logger
}

// NewApp wires the pipeline service into the handler set.
func NewApp(p Service, logger infra.Logger) *App {
	return &App{Pipeline: p, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

// fail maps a pipeline error to an HTTP response.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDecode):
		a.error(w, http.StatusBadRequest, "decode_failure", err.Error())
	case errors.Is(err, domain.ErrInvalidEdit):
		a.error(w, http.StatusUnprocessableEntity, "invalid_edit", err.Error())
	case errors.Is(err, domain.ErrUpstream):
		a.error(w, http.StatusBadGateway, "upstream_failure", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
