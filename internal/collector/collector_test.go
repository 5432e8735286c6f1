package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"StockTracker/internal/histcache"
	"StockTracker/internal/model"
	"StockTracker/internal/recorder"
	"StockTracker/internal/store"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// Wednesday 10:00 in New York.
	openTime = time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	// Saturday noon in New York.
	closedTime = time.Date(2024, 5, 4, 16, 0, 0, 0, time.UTC)
)

type fixture struct {
	st      *store.Store
	mock    *MockFetcher
	col     *Collector
	rec     *recorder.StoreRecorder
	now     time.Time
	sleeper *sleepRecorder
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), store.Interactive)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{st: st, now: now, sleeper: &sleepRecorder{}}
	clock := func() time.Time { return f.now }
	f.mock = &MockFetcher{
		Quotes: map[string]model.SymbolSnapshot{
			"AAPL": {Symbol: "AAPL", CurrentPrice: null.FloatFrom(170), PreviousClose: null.FloatFrom(168), Name: null.StringFrom("Apple Inc.")},
			"MSFT": {Symbol: "MSFT", CurrentPrice: null.FloatFrom(400), PreviousClose: null.FloatFrom(402)},
		},
		Daily: map[string][]model.DailyBar{
			"AAPL": {{Symbol: "AAPL", Date: "2024-04-30", Close: 168}, {Symbol: "AAPL", Date: "2024-05-01", Close: 170}},
			"MSFT": {{Symbol: "MSFT", Date: "2024-05-01", Close: 400}},
		},
		Intraday: map[string][]model.IntradayBar{
			"AAPL": {{Symbol: "AAPL", DateTime: "2024-05-01T13:59:00Z", Close: 170}},
		},
		Errs: map[string][]error{},
		Now:  clock,
	}
	f.rec = recorder.NewStoreRecorder(st, clock)
	f.col = NewCollector(f.mock, st, f.rec)
	f.col.Now = clock
	f.col.Retry.Sleep = f.sleeper.sleep
	return f
}

func transportErr(msg string) error {
	return &TransportError{Op: "test", Err: errors.New(msg)}
}

func TestFetchStockData_IsolatesFailingSymbol(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)
	f.mock.Errs["quote:ZZZZ"] = []error{transportErr("a"), transportErr("b"), transportErr("c"), transportErr("d")}

	res := f.col.FetchStockData(ctx, []string{"AAPL", "ZZZZ"})

	require.Len(t, res.StockData, 1)
	assert.Equal(t, "AAPL", res.StockData[0].Symbol)
	assert.Equal(t, []string{"AAPL"}, res.FetchedSymbols)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ZZZZ", res.Failures[0].Symbol)
	assert.Equal(t, StageQuote, res.Failures[0].Stage)
	assert.True(t, IsTransport(res.Failures[0].Err))
	assert.Equal(t, 4, f.mock.Calls("quote:ZZZZ"))

	// every attempt is in the telemetry, failures included
	agg, details, err := f.rec.Day(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, int64(4), agg.FailureCalls)
	assert.Equal(t, agg.SuccessCalls+agg.FailureCalls, agg.TotalCalls)
	assert.Len(t, details, int(agg.TotalCalls))

	cached, err := f.st.GetSnapshot(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestFetchStockData_StoresAllStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)

	res := f.col.FetchStockData(ctx, []string{"AAPL"})
	require.Empty(t, res.Failures)
	require.Len(t, res.StockData, 1)

	snap := res.StockData[0]
	assert.Equal(t, model.MarketOpen, snap.MarketStatus)
	assert.Equal(t, 2.0, snap.DayChange.Float64)
	assert.Equal(t, "2024-05-01", snap.Date.String)
	assert.True(t, snap.LastUpdated.Valid)

	daily, err := f.st.GetDailyBars(ctx, "AAPL", "", "")
	require.NoError(t, err)
	assert.Len(t, daily, 2)

	last, err := f.st.LastIntradayBarTime(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T13:59:00Z", last)

	assert.Equal(t, 1, f.mock.Calls("quote:AAPL"))
	assert.Equal(t, 1, f.mock.Calls("daily:AAPL"))
	assert.Equal(t, 1, f.mock.Calls("intraday:AAPL"))
}

func TestFetchStockData_SkipsCoveredSubFetches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)

	f.col.FetchStockData(ctx, []string{"AAPL"})
	f.now = f.now.Add(2 * time.Minute)
	res := f.col.FetchStockData(ctx, []string{"AAPL"})

	require.Empty(t, res.Failures)
	assert.Equal(t, 2, f.mock.Calls("quote:AAPL"), "market open: quotes are always refreshed")
	assert.Equal(t, 1, f.mock.Calls("daily:AAPL"), "today's session is already stored")
	assert.Equal(t, 1, f.mock.Calls("intraday:AAPL"), "last intraday bar is within the refresh interval")
}

func TestFetchStockData_ServesFreshCacheWhenClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, closedTime)

	_, _, err := f.st.PutSnapshot(ctx, model.SymbolSnapshot{
		Symbol:       "AAPL",
		CurrentPrice: null.FloatFrom(169),
		LastUpdated:  null.StringFrom(closedTime.Add(-2 * time.Minute).Format(time.RFC3339)),
	})
	require.NoError(t, err)

	res := f.col.FetchStockData(ctx, []string{"AAPL"})

	assert.Zero(t, f.mock.TotalCalls())
	assert.Empty(t, res.FetchedSymbols)
	require.Len(t, res.StockData, 1)
	assert.Equal(t, 169.0, res.StockData[0].CurrentPrice.Float64)

	totals, err := f.rec.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.Lifetime, "serving from cache records no call")
}

func TestFetchStockData_StaleCacheWhenClosedIsRefetched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, closedTime)

	_, _, err := f.st.PutSnapshot(ctx, model.SymbolSnapshot{
		Symbol:       "AAPL",
		CurrentPrice: null.FloatFrom(169),
		LastUpdated:  null.StringFrom(closedTime.Add(-time.Hour).Format(time.RFC3339)),
	})
	require.NoError(t, err)

	res := f.col.FetchStockData(ctx, []string{"AAPL"})
	assert.Equal(t, 1, f.mock.Calls("quote:AAPL"))
	assert.Equal(t, []string{"AAPL"}, res.FetchedSymbols)
	assert.Equal(t, 170.0, res.StockData[0].CurrentPrice.Float64)
}

func TestFetchStockData_KeepsHoldingAcrossRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)

	_, _, err := f.st.PutSnapshot(ctx, model.Holding("AAPL", 10, 150))
	require.NoError(t, err)

	res := f.col.FetchStockData(ctx, []string{"AAPL"})
	require.Len(t, res.StockData, 1)
	assert.Equal(t, 10.0, res.StockData[0].Quantity.Float64)
	assert.Equal(t, 150.0, res.StockData[0].AvgCostBasis.Float64)
	assert.Equal(t, 170.0, res.StockData[0].CurrentPrice.Float64)
}

func TestFetchStockData_StageFailureStopsSymbolOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)
	f.mock.Errs["daily:AAPL"] = []error{&DataError{Op: "test", Err: errors.New("bad payload")}}

	res := f.col.FetchStockData(ctx, []string{"AAPL", "MSFT"})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageDaily, res.Failures[0].Stage)
	assert.Equal(t, 1, f.mock.Calls("daily:AAPL"), "data errors are not retried")
	assert.Zero(t, f.mock.Calls("intraday:AAPL"), "remaining stages are skipped")
	assert.Equal(t, []string{"AAPL", "MSFT"}, res.FetchedSymbols)
	assert.Equal(t, 1, f.mock.Calls("daily:MSFT"))

	daily, err := f.st.GetDailyBars(ctx, "AAPL", "", "")
	require.NoError(t, err)
	assert.Empty(t, daily)
}

func TestFetchStockData_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)
	f.mock.Errs["quote:AAPL"] = []error{transportErr("reset"), transportErr("reset")}

	res := f.col.FetchStockData(ctx, []string{"AAPL"})

	assert.Empty(t, res.Failures)
	assert.Equal(t, 3, f.mock.Calls("quote:AAPL"))
	assert.Len(t, f.sleeper.waits, 2)
}

func TestHistory_UsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)
	f.col.Charts = histcache.NewMemory(time.Hour, func() time.Time { return f.now })

	h, err := f.col.History(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, h.DailyData, 2)

	_, err = f.col.History(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, f.mock.Calls("history:AAPL"))

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.col.History(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, f.mock.Calls("history:AAPL"))
}

func TestPanels_RecordTelemetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, openTime)
	f.mock.Price = 100
	f.mock.Errs["bitcoin"] = []error{transportErr("down")}

	_, err := f.col.MarketOverview(ctx)
	require.NoError(t, err)
	_, err = f.col.MarketHistory(ctx, "^GSPC", "1Y")
	require.NoError(t, err)
	_, err = f.col.Bitcoin(ctx)
	require.Error(t, err)
	assert.True(t, f.col.ValidateSymbol(ctx, "AAPL"))

	agg, details, err := f.rec.Day(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(4), agg.TotalCalls)
	assert.Equal(t, int64(1), agg.FailureCalls)
	types := map[string]bool{}
	for _, d := range details {
		types[d.Type] = true
	}
	assert.True(t, types[CallOverview])
	assert.True(t, types[CallMarketHist])
	assert.True(t, types[CallBitcoin])
	assert.True(t, types[CallValidate])
}

// cancellingFetcher cancels the caller's context whenever symbol is quoted.
type cancellingFetcher struct {
	*MockFetcher
	symbol string
	cancel context.CancelFunc
}

func (c *cancellingFetcher) FetchQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error) {
	if symbol == c.symbol {
		c.cancel()
	}
	return c.MockFetcher.FetchQuote(ctx, symbol)
}

func TestFetchStockData_CancelledMidBatchCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, openTime)
	f.mock.Errs["quote:ZZZZ"] = []error{transportErr("a"), transportErr("b"), transportErr("c"), transportErr("d")}
	f.col.Fetcher = &cancellingFetcher{MockFetcher: f.mock, symbol: "ZZZZ", cancel: cancel}

	res := f.col.FetchStockData(ctx, []string{"ZZZZ", "AAPL"})
	require.Error(t, ctx.Err())

	assert.Equal(t, 4, f.mock.Calls("quote:ZZZZ"), "retry budget is spent")
	assert.Equal(t, 1, f.mock.Calls("quote:AAPL"), "the rest of the batch still runs")
	assert.Equal(t, []string{"AAPL"}, res.FetchedSymbols)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ZZZZ", res.Failures[0].Symbol)

	agg, details, err := f.rec.Day(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, int64(4), agg.FailureCalls)
	assert.Len(t, details, int(agg.TotalCalls))
}

func TestCall_RecordsWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t, openTime)

	_, err := f.col.MarketOverview(ctx)
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	agg, _, err := f.rec.Day(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, int64(1), agg.FailureCalls)
}

func TestFetchStockData_CacheServedWithBatchStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, closedTime)

	_, _, err := f.st.PutSnapshot(ctx, model.SymbolSnapshot{
		Symbol:       "AAPL",
		CurrentPrice: null.FloatFrom(169),
		LastUpdated:  null.StringFrom(closedTime.Add(-time.Minute).Format(time.RFC3339)),
		MarketStatus: model.MarketOpen,
	})
	require.NoError(t, err)

	res := f.col.FetchStockData(ctx, []string{"AAPL"})
	require.Len(t, res.StockData, 1)
	assert.Equal(t, model.MarketClosed, res.StockData[0].MarketStatus)
	assert.Zero(t, f.mock.TotalCalls())
}
