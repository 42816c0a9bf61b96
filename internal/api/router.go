package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	// RequestTimeout must exceed the per-store scrape timeout.
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		RequestTimeout: 120 * time.Second,
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
	}
}

func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", h.Scrape)
		r.Get("/history", h.History)
		r.Get("/export", h.Export)
		r.Get("/stores", h.Stores)

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", h.SchedulerStatus)
			r.Post("/run", h.RunScheduler)
		})
	})

	return r
}
