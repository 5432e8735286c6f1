// Package httpapi serves the local cache, portfolio and telemetry over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"StockTracker/internal/collector"
	"StockTracker/internal/config"
	"StockTracker/internal/portfolio"
	"StockTracker/internal/recorder"
	"StockTracker/internal/scheduler"
	"StockTracker/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the handlers' dependencies.
type Server struct {
	Store     *store.Store
	Collector *collector.Collector
	Scheduler *scheduler.Scheduler
	Book      *portfolio.Book
	Recorder  recorder.Recorder
	Config    *config.Config
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/tabs", s.tabs)

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.listSnapshots)
			r.Route("/{symbol}", func(r chi.Router) {
				r.Get("/", s.getSnapshot)
				r.Delete("/", s.deleteSnapshot)
				r.Put("/holding", s.putHolding)
				r.Get("/daily", s.dailyBars)
				r.Get("/intraday", s.intradayBars)
				r.Get("/indicators", s.indicators)
				r.Get("/history", s.history)
			})
		})

		r.Get("/portfolio", s.portfolio)
		r.Post("/refresh", s.refresh)
		r.Delete("/cache", s.clearCache)

		r.Get("/stats", s.stats)
		r.Get("/stats/{date}", s.statsDay)

		r.Route("/market", func(r chi.Router) {
			r.Get("/status", s.marketStatus)
			r.Get("/overview", s.marketOverview)
			r.Get("/history", s.marketHistory)
			r.Get("/sectors", s.marketSectors)
			r.Get("/economic", s.economicIndicators)
			r.Get("/bitcoin", s.bitcoin)
		})

		r.Get("/symbols", s.symbols)
		r.Get("/symbols/{symbol}/validate", s.validateSymbol)
	})
	return r
}

// NewHTTPServer wraps the router in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.Routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   90 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}
