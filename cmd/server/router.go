package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/studyguide-api/internal/api"
	apiMiddleware "github.com/phrazzld/studyguide-api/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	cfg := app.config
	r := chi.NewRouter()

	// CORS runs first so preflight requests are answered before anything else.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", api.CredentialHeader},
		ExposedHeaders: []string{apiMiddleware.TraceIDHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewMetricsMiddleware(app.metrics))

	guideHandler := api.NewGuideHandler(app.guideService, int64(cfg.Server.MaxUploadMB)<<20, app.logger)
	healthHandler := api.NewHealthHandler(cfg.Store.Backend)

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.APIHealth)

		r.Group(func(r chi.Router) {
			if app.jwtService != nil {
				identity := apiMiddleware.NewIdentityMiddleware(app.jwtService, cfg.Auth.Required, app.logger)
				r.Use(identity.Identify)
			}

			r.Get("/models", guideHandler.ListModels)
			r.Post("/upload", guideHandler.UploadGuide)
			r.Get("/guides", guideHandler.ListGuides)
			r.Post("/motivation", guideHandler.Motivate)

			r.Get("/guide/{id}", guideHandler.GetGuide)
			r.Delete("/guide/{id}", guideHandler.DeleteGuide)
			r.Put("/guide/{id}/progress", guideHandler.UpdateProgress)
			r.Post("/guide/{id}/replan", guideHandler.Replan)
		})
	})

	return r
}
