package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"StockTracker/internal/freshness"
	"StockTracker/internal/histcache"
	"StockTracker/internal/model"
	"StockTracker/internal/recorder"

	"github.com/guregu/null/v6"
)

// Telemetry call types.
const (
	CallQuote      = "fetchSingleStockData"
	CallDaily      = "fetchDailyData"
	CallIntraday   = "fetchFiveMinuteData"
	CallHistory    = "fetchHistoricalData"
	CallOverview   = "fetchMarketOverview"
	CallMarketHist = "fetchMarketHistory"
	CallSectors    = "fetchMarketSectors"
	CallEconomic   = "fetchEconomicIndicators"
	CallBitcoin    = "fetchBitcoinData"
	CallSymbols    = "fetchSymbols"
	CallValidate   = "validateStock"
)

// Store is the part of the persistent cache the collector reads and writes.
type Store interface {
	GetSnapshot(ctx context.Context, symbol string) (*model.SymbolSnapshot, error)
	PutSnapshot(ctx context.Context, snap model.SymbolSnapshot) (model.SymbolSnapshot, bool, error)
	LastDailyBarDate(ctx context.Context, symbol string) (string, error)
	PutDailyBars(ctx context.Context, symbol string, bars []model.DailyBar) (int, error)
	LastIntradayBarTime(ctx context.Context, symbol string) (string, error)
	PutIntradayBars(ctx context.Context, symbol string, bars []model.IntradayBar) (int, error)
}

// Failure is a symbol whose refresh stopped at Stage.
type Failure struct {
	Symbol string `json:"symbol"`
	Stage  Stage  `json:"stage"`
	Error  string `json:"error"`
	Err    error  `json:"-"`
}

// FetchResult is the outcome of a batch refresh.
type FetchResult struct {
	StockData      []model.SymbolSnapshot `json:"stockData"`
	FetchedSymbols []string               `json:"fetchedSymbols"`
	Failures       []Failure              `json:"failures,omitempty"`
}

// Collector refreshes the local cache from a Fetcher.
type Collector struct {
	Fetcher  Fetcher
	Store    Store
	Recorder recorder.Recorder
	Policy   freshness.Policy
	Retry    RetryPolicy
	Charts   histcache.Cache
	Now      func() time.Time
}

// NewCollector creates a Collector with the default staleness and retry
// policies. A nil rec records nothing.
func NewCollector(fetcher Fetcher, st Store, rec recorder.Recorder) *Collector {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Collector{
		Fetcher:  fetcher,
		Store:    st,
		Recorder: rec,
		Policy:   freshness.DefaultPolicy(),
		Retry:    DefaultRetryPolicy(),
		Charts:   histcache.NewMemory(histcache.DefaultTTL, nil),
		Now:      time.Now,
	}
}

// call runs fn once and records it as a telemetry row of type callType.
func call[T any](ctx context.Context, rec recorder.Recorder, callType string, request any, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	c := recorder.Call{
		Type:     callType,
		Success:  err == nil,
		Duration: time.Since(start),
		Request:  request,
		Err:      err,
	}
	if err == nil {
		c.Response = out
	}
	rec.LogCall(context.WithoutCancel(ctx), c)
	return out, err
}

// retried runs fn under the retry policy, recording every attempt.
func retried[T any](ctx context.Context, c *Collector, callType, op string, request any, fn func(ctx context.Context) (T, error)) (T, error) {
	return Retry(ctx, c.Retry, op, func(ctx context.Context, _ int) (T, error) {
		return call(ctx, c.Recorder, callType, request, fn)
	})
}

// FetchStockData refreshes symbols in input order. A symbol whose cached
// snapshot is fresh while the market is closed is served from cache.
// Otherwise its quote is fetched and merged into the cache, followed by the
// daily and intraday bars when the stored coverage is behind. A failing stage
// is recorded and ends that symbol's refresh without touching the cached data
// of that stage; the remaining symbols are still processed. A started batch
// runs to completion even when ctx is cancelled.
func (c *Collector) FetchStockData(ctx context.Context, symbols []string) *FetchResult {
	ctx = context.WithoutCancel(ctx)
	res := &FetchResult{
		StockData:      []model.SymbolSnapshot{},
		FetchedSymbols: []string{},
	}
	now := c.Now()
	status := c.Policy.BatchStatus(now)

	for _, symbol := range symbols {
		cached, err := c.Store.GetSnapshot(ctx, symbol)
		if err != nil {
			log.Printf("[WARN] read cached %s: %v", symbol, err)
			cached = nil
		}
		fresh := cached != nil && !c.Policy.ShouldFetchString(cached.LastUpdated.String, now)
		if freshness.CanSkipFetch(fresh, status) {
			log.Printf("[INFO] market closed and %s is fresh, serving cache", symbol)
			served := *cached
			served.MarketStatus = status
			res.StockData = append(res.StockData, served)
			continue
		}

		snap, err := c.refreshQuote(ctx, symbol)
		if err != nil {
			res.fail(symbol, StageQuote, err)
			continue
		}
		res.StockData = append(res.StockData, snap)
		res.FetchedSymbols = append(res.FetchedSymbols, symbol)

		if err := c.refreshDaily(ctx, symbol); err != nil {
			res.fail(symbol, StageDaily, err)
			continue
		}
		if err := c.refreshIntraday(ctx, symbol); err != nil {
			res.fail(symbol, StageIntraday, err)
			continue
		}
	}
	return res
}

func (r *FetchResult) fail(symbol string, stage Stage, err error) {
	serr := &StageError{Symbol: symbol, Stage: stage, Err: err}
	log.Printf("[ERROR] refresh %v", serr)
	r.Failures = append(r.Failures, Failure{Symbol: symbol, Stage: stage, Error: serr.Error(), Err: serr})
}

func (c *Collector) refreshQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error) {
	log.Printf("[INFO] fetching quote for %s", symbol)
	snap, err := retried(ctx, c, CallQuote, "fetch quote "+symbol, map[string]string{"symbol": symbol},
		func(ctx context.Context) (model.SymbolSnapshot, error) {
			return c.Fetcher.FetchQuote(ctx, symbol)
		})
	if err != nil {
		return snap, err
	}

	now := c.Now()
	snap.Symbol = symbol
	if !snap.LastUpdated.Valid || snap.LastUpdated.String == "" {
		snap.LastUpdated = null.StringFrom(now.UTC().Format(time.RFC3339Nano))
	}
	if !snap.Date.Valid || snap.Date.String == "" {
		snap.Date = null.StringFrom(model.UTCDate(now))
	}
	updated, _ := model.ParseTimestamp(snap.LastUpdated.String)
	snap.MarketStatus = c.Policy.SnapshotStatus(updated, now)

	merged, changed, err := c.Store.PutSnapshot(ctx, snap)
	if err != nil {
		return snap, fmt.Errorf("store quote: %w", err)
	}
	if !changed {
		log.Printf("[INFO] %s unchanged, no write", symbol)
	}
	return merged, nil
}

func (c *Collector) refreshDaily(ctx context.Context, symbol string) error {
	last, err := c.Store.LastDailyBarDate(ctx, symbol)
	if err != nil {
		return fmt.Errorf("read last daily bar: %w", err)
	}
	if !c.Policy.NeedsDailyBars(last, c.Now()) {
		log.Printf("[INFO] daily bars for %s are up-to-date", symbol)
		return nil
	}

	bars, err := retried(ctx, c, CallDaily, "fetch daily bars "+symbol, map[string]string{"symbol": symbol, "since": last},
		func(ctx context.Context) ([]model.DailyBar, error) {
			return c.Fetcher.FetchDailyBars(ctx, symbol, last)
		})
	if err != nil {
		return err
	}
	n, err := c.Store.PutDailyBars(ctx, symbol, bars)
	if err != nil {
		return fmt.Errorf("store daily bars: %w", err)
	}
	log.Printf("[INFO] %s: %d daily bars fetched, %d written", symbol, len(bars), n)
	return nil
}

func (c *Collector) refreshIntraday(ctx context.Context, symbol string) error {
	last, err := c.Store.LastIntradayBarTime(ctx, symbol)
	if err != nil {
		return fmt.Errorf("read last intraday bar: %w", err)
	}
	if !c.Policy.NeedsIntradayBars(last, c.Now()) {
		log.Printf("[INFO] intraday bars for %s are up-to-date", symbol)
		return nil
	}

	bars, err := retried(ctx, c, CallIntraday, "fetch intraday bars "+symbol, map[string]string{"symbol": symbol, "since": last},
		func(ctx context.Context) ([]model.IntradayBar, error) {
			return c.Fetcher.FetchIntradayBars(ctx, symbol, last)
		})
	if err != nil {
		return err
	}
	n, err := c.Store.PutIntradayBars(ctx, symbol, bars)
	if err != nil {
		return fmt.Errorf("store intraday bars: %w", err)
	}
	log.Printf("[INFO] %s: %d intraday bars fetched, %d written", symbol, len(bars), n)
	return nil
}
