package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tollfee/internal/metrics"
)

// Routes builds the HTTP handler for the whole service.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Config.AllowOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/debug/info", s.DebugJSON)
	r.Get("/openapi.yaml", s.OpenAPIHandler)
	r.Get("/openapi.json", s.OpenAPIJSONHandler)
	r.Get("/docs", s.DocsHandler)
	r.Get("/ws/passages", s.PassageStreamHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/meta/vehicle-types", s.VehicleTypesHandler)

		r.Get("/passages", s.ListPassagesHandler)
		r.Post("/passages", s.CreatePassageHandler)
		r.Post("/passages/import", s.ImportPassagesHandler)
		r.Delete("/passages", s.ClearPassagesHandler)
		r.Delete("/passages/{id}", s.DeletePassageHandler)

		r.Get("/vehicles/{vehicleId}/days/{date}", s.DailyStatementHandler)

		r.Get("/admin/webhook-dlq", s.WebhookDLQHandler)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
	})
	return r
}
