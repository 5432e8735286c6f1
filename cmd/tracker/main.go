package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockTracker/internal/collector"
	"StockTracker/internal/config"
	"StockTracker/internal/histcache"
	"StockTracker/internal/httpapi"
	"StockTracker/internal/portfolio"
	"StockTracker/internal/recorder"
	"StockTracker/internal/scheduler"
	"StockTracker/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] StockTracker starting...")

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	env := store.Interactive
	if cfg.Database.Headless {
		env = store.Headless
	}
	st, err := store.Open(cfg.Database.SQLitePath, env)
	if err != nil {
		log.Printf("[WARN] open store failed, running headless: %v", err)
		if st, err = store.Open("", store.Headless); err != nil {
			log.Fatalf("[FATAL] open headless store: %v", err)
		}
	}
	defer st.Close()
	log.Printf("[INFO] store: %s, schema v%d", st.Environment(), st.SchemaVersion())

	rec := recorder.NewStoreRecorder(st, nil)

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.Upstream.Provider {
	case config.ProviderAPI:
		fetcher = collector.NewAPIFetcher(collector.APIOptions{
			BaseURL:           cfg.Upstream.BaseURL,
			ProxyURL:          cfg.Proxy,
			Timeout:           cfg.Upstream.Timeout,
			RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
			Burst:             cfg.Upstream.Burst,
		})
	case config.ProviderMock:
		fetcher = collector.NewMockFetcher(100)
	default:
		fetcher = collector.NewYahooFetcher()
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init collector
	col := newCollector(ctx, cfg, fetcher, st, rec)

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, rec, func() []string { return cfg.Active().Symbols })
	sched.Policy = col.Policy
	if err := sched.RegisterAll(cfg.Schedule.RefreshInterval, cfg.Schedule.StatusCron, cfg.Schedule.StatsCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RefreshOnStart {
		log.Println("[INFO] refresh_on_start enabled, refreshing active tab now")
		go sched.RefreshActiveTab(ctx)
	}

	// Init HTTP API
	api := &httpapi.Server{
		Store:     st,
		Collector: col,
		Scheduler: sched,
		Book:      portfolio.NewBook(st),
		Recorder:  rec,
		Config:    cfg,
	}
	srv := api.NewHTTPServer(cfg.HTTP.Addr)
	go func() {
		log.Printf("[INFO] HTTP API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] StockTracker is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	log.Println("[INFO] StockTracker stopped")
}

// newCollector applies the upstream retry settings. The staleness window
// stays at freshness.DefaultRefreshInterval whatever the poll interval is.
func newCollector(ctx context.Context, cfg *config.Config, fetcher collector.Fetcher, st collector.Store, rec recorder.Recorder) *collector.Collector {
	col := collector.NewCollector(fetcher, st, rec)
	col.Retry.Budget = cfg.Upstream.RetryBudget
	col.Retry.Delay = cfg.Upstream.RetryDelay
	col.Charts = historyCache(ctx, cfg)
	return col
}

// historyCache uses Redis when configured and reachable, memory otherwise.
func historyCache(ctx context.Context, cfg *config.Config) histcache.Cache {
	if cfg.Redis.Addr == "" {
		return histcache.NewMemory(cfg.Redis.HistoryTTL, nil)
	}
	client, err := histcache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		log.Printf("[WARN] redis unavailable, caching history in memory: %v", err)
		return histcache.NewMemory(cfg.Redis.HistoryTTL, nil)
	}
	log.Printf("[INFO] history cache: redis %s", cfg.Redis.Addr)
	return histcache.NewRedis(client, cfg.Redis.HistoryTTL)
}
