package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"renovai/server/internal/http/handlers"
	"renovai/server/internal/infra"
	"renovai/server/internal/middleware"
)

// Options carries the router's cross-cutting configuration.
type Options struct {
	Logger          infra.Logger
	RateLimitPerMin int
	AllowedOrigins  []string
	UploadDir       string
	PublicUploadURL string
}

// NewRouter assembles the chi router: middleware chain, pipeline endpoints,
// and the static mount serving stored artifacts.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin))
	}

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/preprocess", app.Preprocess)
		r.Post("/architectural-analysis", app.Analyze)
		r.Post("/transform-image", app.Transform)
	})

	// Stored artifacts are fetchable under the same public prefix the
	// pipeline embeds in its URIs.
	fileServer := http.StripPrefix(opts.PublicUploadURL+"/", http.FileServer(http.Dir(opts.UploadDir)))
	r.Get(opts.PublicUploadURL+"/*", fileServer.ServeHTTP)

	return r
}
