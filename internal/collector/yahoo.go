package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"StockTracker/internal/model"

	"github.com/guregu/null/v6"
	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
)

// Tickers shown on the market panels.
var (
	overviewTickers = []string{"^GSPC", "^DJI", "^IXIC", "^RUT"}

	sectorTickers = map[string]string{
		"XLK":  "Technology",
		"XLF":  "Financials",
		"XLV":  "Health Care",
		"XLE":  "Energy",
		"XLY":  "Consumer Discretionary",
		"XLP":  "Consumer Staples",
		"XLI":  "Industrials",
		"XLB":  "Materials",
		"XLU":  "Utilities",
		"XLRE": "Real Estate",
		"XLC":  "Communication Services",
	}

	indicatorTickers = map[string]string{
		"^TNX":     "10Y Treasury Yield",
		"^VIX":     "Volatility Index",
		"CL=F":     "Crude Oil",
		"GC=F":     "Gold",
		"DX-Y.NYB": "US Dollar Index",
	}

	bitcoinTicker = "BTC-USD"

	defaultSymbols = []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B",
		"JPM", "V", "MA", "UNH", "JNJ", "XOM", "WMT", "PG", "HD", "KO",
		"PEP", "COST", "NFLX", "AMD", "INTC", "DIS", "SPY", "QQQ", "VTI",
	}
)

// periodStart maps a chart period to its start relative to now.
func periodStart(period string, now time.Time) (time.Time, error) {
	switch strings.ToUpper(strings.TrimSpace(period)) {
	case "1D":
		return now.AddDate(0, 0, -1), nil
	case "5D", "1W":
		return now.AddDate(0, 0, -7), nil
	case "1M":
		return now.AddDate(0, -1, 0), nil
	case "3M":
		return now.AddDate(0, -3, 0), nil
	case "6M":
		return now.AddDate(0, -6, 0), nil
	case "", "1Y":
		return now.AddDate(-1, 0, 0), nil
	case "5Y":
		return now.AddDate(-5, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// YahooFetcher implements Fetcher straight from Yahoo Finance.
type YahooFetcher struct {
	SymbolMap map[string]string // maps an internal symbol to a Yahoo ticker
	Now       func() time.Time
}

// NewYahooFetcher creates a Yahoo Finance fetcher.
func NewYahooFetcher() *YahooFetcher {
	return &YahooFetcher{
		SymbolMap: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
			"BRK.B": "BRK-B",
		},
		Now: time.Now,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) ticker(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func (f *YahooFetcher) quote(ctx context.Context, op, symbol string) (*finance.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	q, err := quote.Get(f.ticker(symbol))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if q == nil {
		return nil, &DataError{Op: op, Err: fmt.Errorf("no quote for %s", symbol)}
	}
	return q, nil
}

func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error) {
	op := "fetch quote " + symbol
	q, err := f.quote(ctx, op, symbol)
	if err != nil {
		return model.SymbolSnapshot{}, err
	}
	return quoteSnapshot(op, symbol, q)
}

// optional maps a field Yahoo leaves out, reported as zero, to null so the
// merge keeps the cached value.
func optional(v float64) null.Float {
	return null.NewFloat(v, v != 0)
}

func quoteSnapshot(op, symbol string, q *finance.Quote) (model.SymbolSnapshot, error) {
	if q.RegularMarketPrice == 0 {
		return model.SymbolSnapshot{}, &DataError{Op: op, Err: fmt.Errorf("no current price for %s", symbol)}
	}
	snap := model.SymbolSnapshot{
		Symbol:               symbol,
		CurrentPrice:         null.FloatFrom(q.RegularMarketPrice),
		PreviousClose:        optional(q.RegularMarketPreviousClose),
		Open:                 optional(q.RegularMarketOpen),
		DayHigh:              optional(q.RegularMarketDayHigh),
		DayLow:               optional(q.RegularMarketDayLow),
		Volume:               optional(float64(q.RegularMarketVolume)),
		FiftyTwoWeekHigh:     optional(q.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:      optional(q.FiftyTwoWeekLow),
		FiftyDayAverage:      optional(q.FiftyDayAverage),
		TwoHundredDayAverage: optional(q.TwoHundredDayAverage),
		AverageVolume10Days:  optional(float64(q.AverageDailyVolume10Day)),
		Name:                 null.NewString(q.ShortName, q.ShortName != ""),
		Currency:             null.NewString(q.CurrencyID, q.CurrencyID != ""),
		QuoteType:            null.NewString(strings.ToUpper(string(q.QuoteType)), q.QuoteType != ""),
	}
	if q.RegularMarketTime > 0 {
		t := time.Unix(int64(q.RegularMarketTime), 0).UTC()
		snap.Date = null.StringFrom(t.Format(model.DateFormat))
	}
	deriveDayChange(&snap)
	return snap, nil
}

type chartBar struct {
	at                     time.Time
	open, high, low, close float64
	volume                 float64
}

func (f *YahooFetcher) chart(ctx context.Context, op, symbol string, start, end time.Time, interval datetime.Interval) ([]chartBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	params := &chart.Params{
		Symbol:   f.ticker(symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	}
	iter := chart.Get(params)

	var bars []chartBar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, chartBar{
			at:     time.Unix(int64(b.Timestamp), 0).UTC(),
			open:   b.Open.InexactFloat64(),
			high:   b.High.InexactFloat64(),
			low:    b.Low.InexactFloat64(),
			close:  b.Close.InexactFloat64(),
			volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].at.Before(bars[j].at) })
	return bars, nil
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol, since string) ([]model.DailyBar, error) {
	now := f.Now()
	start := now.AddDate(-5, 0, 0)
	if t, ok := model.ParseTimestamp(since); ok {
		start = t
	}
	bars, err := f.chart(ctx, "fetch daily bars "+symbol, symbol, start, now, datetime.OneDay)
	if err != nil {
		return nil, err
	}
	out := make([]model.DailyBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.DailyBar{
			Symbol: symbol, Date: b.at.Format(model.DateFormat),
			Open: b.open, High: b.high, Low: b.low, Close: b.close, Volume: b.volume,
		})
	}
	return out, nil
}

func (f *YahooFetcher) FetchIntradayBars(ctx context.Context, symbol, since string) ([]model.IntradayBar, error) {
	now := f.Now()
	start := now.Add(-24 * time.Hour)
	if t, ok := model.ParseTimestamp(since); ok && t.After(start) {
		start = t
	}
	bars, err := f.chart(ctx, "fetch intraday bars "+symbol, symbol, start, now, datetime.FiveMins)
	if err != nil {
		return nil, err
	}
	return intradayFromChart(symbol, bars), nil
}

func intradayFromChart(symbol string, bars []chartBar) []model.IntradayBar {
	out := make([]model.IntradayBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.IntradayBar{
			Symbol: symbol, DateTime: b.at.Truncate(time.Minute).Format(time.RFC3339),
			Open: b.open, High: b.high, Low: b.low, Close: b.close, Volume: b.volume,
		})
	}
	return out
}

func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol string) (*model.History, error) {
	daily, err := f.FetchDailyBars(ctx, symbol, "")
	if err != nil {
		return nil, err
	}
	now := f.Now()
	granular, err := f.chart(ctx, "fetch history "+symbol, symbol, now.AddDate(0, 0, -3), now, datetime.FiveMins)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 && len(granular) == 0 {
		return nil, &DataError{Op: "fetch history " + symbol, Err: errors.New("empty history")}
	}
	return &model.History{Symbol: symbol, DailyData: daily, GranularData: intradayFromChart(symbol, granular)}, nil
}

func (f *YahooFetcher) panelQuote(ctx context.Context, ticker, name string) (model.Quote, error) {
	q, err := f.quote(ctx, "fetch "+ticker, ticker)
	if err != nil {
		return model.Quote{}, err
	}
	if name == "" {
		name = q.ShortName
	}
	change := q.RegularMarketPrice - q.RegularMarketPreviousClose
	pct := 0.0
	if q.RegularMarketPreviousClose != 0 {
		pct = change / q.RegularMarketPreviousClose * 100
	}
	return model.Quote{Name: name, Current: q.RegularMarketPrice, Change: change, ChangePercent: pct}, nil
}

func (f *YahooFetcher) FetchMarketOverview(ctx context.Context) (model.MarketOverview, error) {
	out := make(model.MarketOverview, len(overviewTickers))
	for _, t := range overviewTickers {
		q, err := f.panelQuote(ctx, t, "")
		if err != nil {
			return nil, err
		}
		out[t] = q
	}
	return out, nil
}

func (f *YahooFetcher) FetchMarketHistory(ctx context.Context, index, period string) ([]model.MarketHistoryPoint, error) {
	op := "fetch market history " + index
	now := f.Now()
	start, err := periodStart(period, now)
	if err != nil {
		return nil, &DataError{Op: op, Err: err}
	}
	if index == "" {
		index = overviewTickers[0]
	}
	bars, err := f.chart(ctx, op, index, start, now, datetime.OneDay)
	if err != nil {
		return nil, err
	}
	out := make([]model.MarketHistoryPoint, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.MarketHistoryPoint{Date: b.at.Format(model.DateFormat), Close: b.close})
	}
	return out, nil
}

func (f *YahooFetcher) FetchMarketSectors(ctx context.Context) (model.MarketSectors, error) {
	out := make(model.MarketSectors, len(sectorTickers))
	for t, name := range sectorTickers {
		q, err := f.panelQuote(ctx, t, name)
		if err != nil {
			return nil, err
		}
		out[t] = model.MarketSector{Name: name, Change: q.ChangePercent}
	}
	return out, nil
}

func (f *YahooFetcher) FetchEconomicIndicators(ctx context.Context) (model.EconomicIndicators, error) {
	out := make(model.EconomicIndicators, len(indicatorTickers))
	for t, name := range indicatorTickers {
		q, err := f.panelQuote(ctx, t, name)
		if err != nil {
			return nil, err
		}
		out[t] = q
	}
	return out, nil
}

func (f *YahooFetcher) FetchBitcoin(ctx context.Context) (model.Quote, error) {
	return f.panelQuote(ctx, bitcoinTicker, "Bitcoin")
}

// FetchSymbols returns a fixed list of common tickers; Yahoo has no listing
// endpoint.
func (f *YahooFetcher) FetchSymbols(_ context.Context) ([]string, error) {
	out := make([]string, len(defaultSymbols))
	copy(out, defaultSymbols)
	return out, nil
}
