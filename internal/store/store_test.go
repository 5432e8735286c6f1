package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"StockTracker/internal/model"

	"github.com/guregu/null/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tracker.db"), Interactive)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, LatestVersion, s.SchemaVersion())
	assert.Equal(t, Interactive, s.Environment())
}

func TestOpen_AdditiveMigrationKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	v, err := migrateTo(path, 1)
	require.NoError(t, err)
	require.Equal(t, uint(1), v)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO symbols (symbol, last_updated, data) VALUES ('AAPL', '', '{"symbol":"AAPL","currentPrice":190.5}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path, Interactive)
	require.NoError(t, err)

	assert.Equal(t, LatestVersion, s.SchemaVersion())
	snap, err := s.GetSnapshot(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 190.5, snap.CurrentPrice.Float64)

	// The telemetry tables exist now.
	totals, err := s.GetTotalAPICalls(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Zero(t, totals.Lifetime)
	assert.Equal(t, model.DateRange{Start: "2024-05-01", End: "2024-05-01"}, totals.DateRange, "empty range defaults to today")

	// Reopening an up-to-date file is a no-op.
	require.NoError(t, s.Close())
	s2, err := Open(path, Interactive)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, LatestVersion, s2.SchemaVersion())
}

func TestMigrateTo_NeverMovesDown(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path, Interactive)
	require.NoError(t, err)
	_, _, err = s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "AAPL", CurrentPrice: null.FloatFrom(170)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	v, err := migrateTo(path, 1)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, v)

	s, err = Open(path, Interactive)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.GetSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 170.0, snap.CurrentPrice.Float64)
}

func TestHeadlessReturnsEmptyResults(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", Headless)
	require.NoError(t, err)

	snap, err := s.GetSnapshot(ctx, "AAPL")
	assert.NoError(t, err)
	assert.Nil(t, snap)

	all, err := s.GetSnapshots(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)

	_, changed, err := s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "AAPL"})
	assert.NoError(t, err)
	assert.False(t, changed)

	bars, err := s.GetDailyBars(ctx, "AAPL", "", "")
	assert.NoError(t, err)
	assert.Empty(t, bars)

	n, err := s.PutDailyBars(ctx, "AAPL", []model.DailyBar{{Date: "2024-05-01", Close: 1}})
	assert.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, s.LogCall(ctx, model.APICallDetail{ID: "x", Date: "2024-05-01"}))
	totals, err := s.GetTotalAPICalls(ctx, "2024-05-01")
	assert.NoError(t, err)
	assert.Equal(t, model.APITotals{DateRange: model.DateRange{Start: "2024-05-01", End: "2024-05-01"}}, totals)

	assert.NoError(t, s.ClearAll(ctx))
	assert.Zero(t, s.SchemaVersion())
	assert.NoError(t, s.Close())
}

func TestPutSnapshot_MergeSemantics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := model.SymbolSnapshot{
		Symbol:        "AAPL",
		CurrentPrice:  null.FloatFrom(190),
		PreviousClose: null.FloatFrom(188),
		LastUpdated:   null.StringFrom("2024-05-01T14:00:00Z"),
	}
	stored, changed, err := s.PutSnapshot(ctx, first)
	require.NoError(t, err)
	assert.True(t, changed, "no cached version inserts")
	assert.Equal(t, first, stored)

	_, changed, err = s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "AAPL", CurrentPrice: null.FloatFrom(190)})
	require.NoError(t, err)
	assert.False(t, changed, "identical subset does not write")

	_, changed, err = s.PutSnapshot(ctx, model.Holding("AAPL", 10, 150))
	require.NoError(t, err)
	assert.True(t, changed)

	refreshed, changed, err := s.PutSnapshot(ctx, model.SymbolSnapshot{
		Symbol:       "AAPL",
		CurrentPrice: null.FloatFrom(191.25),
		LastUpdated:  null.StringFrom("2024-05-01T14:06:00Z"),
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 10.0, refreshed.Quantity.Float64)
	assert.Equal(t, 150.0, refreshed.AvgCostBasis.Float64)
	assert.Equal(t, 188.0, refreshed.PreviousClose.Float64)
	assert.Equal(t, 191.25, refreshed.CurrentPrice.Float64)

	got, err := s.GetSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, refreshed, *got)

	last, err := s.GetLastUpdated(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T14:06:00Z", last)
}

func TestPutSnapshot_LastUpdatedNeverRegresses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "MSFT", LastUpdated: null.StringFrom("2024-05-01T14:06:00Z")})
	require.NoError(t, err)

	stored, _, err := s.PutSnapshot(ctx, model.SymbolSnapshot{
		Symbol:       "MSFT",
		CurrentPrice: null.FloatFrom(410),
		LastUpdated:  null.StringFrom("2024-05-01T10:00:00-04:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T14:06:00Z", stored.LastUpdated.String)
	assert.Equal(t, 410.0, stored.CurrentPrice.Float64)
}

func TestPutSnapshot_RejectsEmptySymbol(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.PutSnapshot(context.Background(), model.SymbolSnapshot{Symbol: "  "})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSnapshotsUpdatedSince(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for sym, ts := range map[string]string{
		"AAPL": "2024-05-01T14:00:00Z",
		"MSFT": "2024-05-01T14:10:00.5Z",
		"NVDA": "2024-05-01T14:10:00Z",
		"TSLA": "",
	} {
		snap := model.SymbolSnapshot{Symbol: sym, CurrentPrice: null.FloatFrom(1)}
		if ts != "" {
			snap.LastUpdated = null.StringFrom(ts)
		}
		_, _, err := s.PutSnapshot(ctx, snap)
		require.NoError(t, err)
	}

	got, err := s.SnapshotsUpdatedSince(ctx, time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "NVDA", got[0].Symbol)
	assert.Equal(t, "MSFT", got[1].Symbol)

	all, err := s.GetSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "AAPL", all[0].Symbol)
}

func TestDailyBars(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bars := []model.DailyBar{
		{Date: "2024-04-29", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: "2024-04-30T00:00:00", Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 200},
		{Date: "2024-05-01", Open: 3, High: 4, Low: 2.5, Close: 3.5, Volume: 300},
		{Date: "garbage", Close: 9},
	}
	n, err := s.PutDailyBars(ctx, "AAPL", bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "invalid row skipped")

	n, err = s.PutDailyBars(ctx, "AAPL", bars[:3])
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged bars are not rewritten")

	got, err := s.GetDailyBars(ctx, "AAPL", "2024-04-30", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, got, 2, "range is inclusive on both ends")
	assert.Equal(t, "2024-04-30", got[0].Date)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, 3.5, got[1].Close)

	all, err := s.GetDailyBars(ctx, "AAPL", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	last, err := s.LastDailyBarDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", last)

	none, err := s.LastDailyBarDate(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, none)

	revised := bars[2]
	revised.Close = 3.75
	n, err = s.PutDailyBars(ctx, "AAPL", []model.DailyBar{revised})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIntradayBars_NormalizedKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.PutIntradayBars(ctx, "AAPL", []model.IntradayBar{
		{DateTime: "2024-05-01T09:30:00-04:00", Open: 1, Close: 1.1},
		{DateTime: "2024-05-01T13:35:00", Open: 1.1, Close: 1.2},
		{DateTime: "2024-05-01 13:40:00", Open: 1.2, Close: 1.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.GetIntradayBars(ctx, "AAPL", "2024-05-01T13:30:00Z", "2024-05-01T13:35:00Z")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-01T13:30:00Z", got[0].DateTime)
	assert.Equal(t, "2024-05-01T13:35:00Z", got[1].DateTime)

	day, err := s.GetIntradayBars(ctx, "AAPL", "2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, day, 3)

	last, err := s.LastIntradayBarTime(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T13:40:00Z", last)
}

func TestLogCall_UpdatesAggregate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.LogCall(ctx, model.APICallDetail{
		ID: "a", Date: "2024-05-01", Time: "2024-05-01T14:00:00Z", Type: "stock",
		Duration: 100, Success: true, RequestData: []byte(`{"symbol":"AAPL"}`),
	}))
	require.NoError(t, s.LogCall(ctx, model.APICallDetail{
		ID: "b", Date: "2024-05-01", Time: "2024-05-01T14:00:01Z", Type: "stock",
		Duration: 300, Success: false, ErrorMessage: "timeout",
	}))
	require.NoError(t, s.LogCall(ctx, model.APICallDetail{
		ID: "c", Date: "2024-05-02", Time: "2024-05-02T00:00:01Z", Type: "historical",
		Duration: 50, Success: true,
	}))

	agg, err := s.GetAPIHistory(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, model.APICallAggregate{
		Date: "2024-05-01", TotalCalls: 2, TotalDuration: 400, AvgDuration: 200,
		SuccessCalls: 1, FailureCalls: 1,
	}, *agg)

	details, err := s.GetAPICallDetails(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, string(details[0].RequestData))
	assert.Nil(t, details[0].ResponseData)
	assert.Equal(t, "timeout", details[1].ErrorMessage)
	assert.False(t, details[1].Success)

	totals, err := s.GetTotalAPICalls(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, model.APITotals{
		Today:     1,
		Lifetime:  3,
		DateRange: model.DateRange{Start: "2024-05-01", End: "2024-05-02"},
	}, totals)

	list, err := s.ListAPIHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	missing, err := s.GetAPIHistory(ctx, "2023-01-01")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLogCall_RollsBackAsUnit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d := model.APICallDetail{ID: "dup", Date: "2024-05-01", Time: "2024-05-01T14:00:00Z", Type: "stock", Duration: 10, Success: true}
	require.NoError(t, s.LogCall(ctx, d))

	err := s.LogCall(ctx, d)
	require.Error(t, err)
	var txErr *TxError
	assert.True(t, errors.As(err, &txErr))

	agg, err := s.GetAPIHistory(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.TotalCalls, "aggregate update rolled back with the failed detail insert")

	details, err := s.GetAPICallDetails(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, details, 1)
}

func TestLogCall_AggregateProperty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 25
	properties := gopter.NewProperties(params)

	run := 0
	properties.Property("aggregate totals match the logged calls", prop.ForAll(
		func(durations []int64) bool {
			run++
			date := fmt.Sprintf("run-%04d", run)
			var want model.APICallAggregate
			want.Date = date
			for i, d := range durations {
				success := d%3 != 0
				want.Add(success, d)
				err := s.LogCall(ctx, model.APICallDetail{
					ID: fmt.Sprintf("%s-%d", date, i), Date: date, Time: "t", Type: "stock",
					Duration: d, Success: success,
				})
				if err != nil {
					return false
				}
			}
			got, err := s.GetAPIHistory(ctx, date)
			if err != nil {
				return false
			}
			if len(durations) == 0 {
				return got == nil
			}
			return got != nil &&
				got.TotalCalls == int64(len(durations)) &&
				got.TotalCalls == got.SuccessCalls+got.FailureCalls &&
				got.TotalDuration == want.TotalDuration &&
				got.SuccessCalls == want.SuccessCalls
		},
		gen.SliceOf(gen.Int64Range(0, 5000)),
	))

	properties.TestingRun(t)
}

func TestClearAll_KeepsTelemetry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "AAPL", CurrentPrice: null.FloatFrom(1)})
	require.NoError(t, err)
	_, err = s.PutDailyBars(ctx, "AAPL", []model.DailyBar{{Date: "2024-05-01", Close: 1}})
	require.NoError(t, err)
	_, err = s.PutIntradayBars(ctx, "AAPL", []model.IntradayBar{{DateTime: "2024-05-01T13:30:00Z", Close: 1}})
	require.NoError(t, err)
	require.NoError(t, s.LogCall(ctx, model.APICallDetail{ID: "a", Date: "2024-05-01", Time: "t", Type: "stock", Success: true}))

	require.NoError(t, s.ClearAll(ctx))

	snaps, err := s.GetSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	daily, err := s.GetDailyBars(ctx, "AAPL", "", "")
	require.NoError(t, err)
	assert.Empty(t, daily)
	intraday, err := s.GetIntradayBars(ctx, "AAPL", "", "")
	require.NoError(t, err)
	assert.Empty(t, intraday)

	totals, err := s.GetTotalAPICalls(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Lifetime)
}

func TestDeleteSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.PutSnapshot(ctx, model.SymbolSnapshot{Symbol: "AAPL", CurrentPrice: null.FloatFrom(1)})
	require.NoError(t, err)
	_, err = s.PutDailyBars(ctx, "AAPL", []model.DailyBar{{Date: "2024-05-01", Close: 1}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSnapshot(ctx, "AAPL"))
	snap, err := s.GetSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, snap)
	last, err := s.LastDailyBarDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, last)
}
