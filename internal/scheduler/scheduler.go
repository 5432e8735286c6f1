package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"StockTracker/internal/collector"
	"StockTracker/internal/freshness"
	"StockTracker/internal/model"
	"StockTracker/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Refresher runs one batch refresh.
type Refresher interface {
	FetchStockData(ctx context.Context, symbols []string) *collector.FetchResult
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Recorder  recorder.Recorder
	Policy    freshness.Policy
	// ActiveSymbols returns the symbols of the active tab.
	ActiveSymbols func() []string
	Now           func() time.Time
	Ctx           context.Context

	running atomic.Bool

	mu          sync.Mutex
	lastStatus  model.MarketStatus
	lastRefresh time.Time
	lastResult  *collector.FetchResult
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r Refresher, rec recorder.Recorder, active func() []string) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:          cron.New(cron.WithSeconds()),
		Refresher:     r,
		Recorder:      rec,
		Policy:        freshness.DefaultPolicy(),
		ActiveSymbols: active,
		Now:           time.Now,
		Ctx:           ctx,
	}
}

// RegisterAll registers the periodic refresh, the market status tick and the
// statistics tick.
func (s *Scheduler) RegisterAll(refreshInterval time.Duration, statusCron, statsCron string) error {
	if refreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	if _, err := s.Cron.AddFunc(fmt.Sprintf("@every %s", refreshInterval), func() {
		s.RefreshActiveTab(s.Ctx)
	}); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(statusCron, s.statusTick); err != nil {
		return fmt.Errorf("register status task: %w", err)
	}
	if _, err := s.Cron.AddFunc(statsCron, s.statsTick); err != nil {
		return fmt.Errorf("register stats task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Refresh runs a batch refresh of symbols. When a refresh is already in
// flight it returns (nil, false) at once.
func (s *Scheduler) Refresh(ctx context.Context, symbols []string) (*collector.FetchResult, bool) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("[WARN] refresh already in progress, skipping")
		return nil, false
	}
	defer s.running.Store(false)

	start := time.Now()
	res := s.Refresher.FetchStockData(ctx, symbols)
	log.Printf("[INFO] refresh done in %s: %d served, %d fetched, %d failed",
		time.Since(start).Round(time.Millisecond), len(res.StockData), len(res.FetchedSymbols), len(res.Failures))

	s.mu.Lock()
	s.lastRefresh = s.Now()
	s.lastResult = res
	s.mu.Unlock()
	return res, true
}

// RefreshActiveTab refreshes the symbols of the active tab.
func (s *Scheduler) RefreshActiveTab(ctx context.Context) (*collector.FetchResult, bool) {
	var symbols []string
	if s.ActiveSymbols != nil {
		symbols = s.ActiveSymbols()
	}
	if len(symbols) == 0 {
		log.Println("[INFO] active tab has no symbols, nothing to refresh")
		return &collector.FetchResult{StockData: []model.SymbolSnapshot{}, FetchedSymbols: []string{}}, true
	}
	return s.Refresh(ctx, symbols)
}

// Running reports whether a refresh is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastRefresh returns when the last refresh finished and its result.
func (s *Scheduler) LastRefresh() (time.Time, *collector.FetchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh, s.lastResult
}

// MarketStatus is the calendar status at the scheduler's clock.
func (s *Scheduler) MarketStatus() model.MarketStatus {
	return s.Policy.BatchStatus(s.Now())
}

func (s *Scheduler) statusTick() {
	status := s.MarketStatus()
	s.mu.Lock()
	prev := s.lastStatus
	s.lastStatus = status
	s.mu.Unlock()
	if prev != status {
		log.Printf("[INFO] market status changed: %s -> %s", orUnknown(prev), status)
	}
}

func orUnknown(st model.MarketStatus) model.MarketStatus {
	if st == "" {
		return model.MarketUnknown
	}
	return st
}

func (s *Scheduler) statsTick() {
	totals, err := s.Recorder.Totals(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] load api totals: %v", err)
		return
	}
	log.Printf("[INFO] api calls today/lifetime: %d/%d", totals.Today, totals.Lifetime)
}
