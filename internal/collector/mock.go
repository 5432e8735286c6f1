package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"StockTracker/internal/model"

	"github.com/guregu/null/v6"
)

// MockFetcher returns controllable fixed data for development and testing.
//
// Errs scripts failures per call key ("quote:AAPL", "daily:AAPL",
// "intraday:AAPL", "history:AAPL", "overview", ...): each call pops the next
// error, and a nil entry means that call succeeds. A key with no script left
// succeeds. Unknown symbols in Quotes fail with a DataError unless Price is
// set, in which case a synthetic quote is returned.
type MockFetcher struct {
	Price    float64
	Quotes   map[string]model.SymbolSnapshot
	Daily    map[string][]model.DailyBar
	Intraday map[string][]model.IntradayBar
	Errs     map[string][]error
	Now      func() time.Time

	mu    sync.Mutex
	calls map[string]int
}

// NewMockFetcher creates a mock that quotes every symbol at price.
func NewMockFetcher(price float64) *MockFetcher {
	return &MockFetcher{Price: price}
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how often key was requested.
func (m *MockFetcher) Calls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

// TotalCalls returns the number of requests of any kind.
func (m *MockFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *MockFetcher) hit(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[key]++
	script := m.Errs[key]
	if len(script) == 0 {
		return nil
	}
	err := script[0]
	m.Errs[key] = script[1:]
	return err
}

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockFetcher) FetchQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error) {
	key := "quote:" + symbol
	if err := m.hit(ctx, key); err != nil {
		return model.SymbolSnapshot{}, err
	}
	if q, ok := m.Quotes[symbol]; ok {
		deriveDayChange(&q)
		return q, nil
	}
	if m.Price <= 0 {
		return model.SymbolSnapshot{}, &DataError{Op: key, Err: fmt.Errorf("unknown symbol %s", symbol)}
	}
	snap := model.SymbolSnapshot{
		Symbol:        symbol,
		CurrentPrice:  null.FloatFrom(m.Price),
		PreviousClose: null.FloatFrom(m.Price * 0.99),
		Name:          null.StringFrom(symbol + " Inc."),
	}
	deriveDayChange(&snap)
	return snap, nil
}

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol, since string) ([]model.DailyBar, error) {
	if err := m.hit(ctx, "daily:"+symbol); err != nil {
		return nil, err
	}
	bars, ok := m.Daily[symbol]
	if !ok {
		bars = generateMockBars(symbol, m.Price, 30, m.now())
	}
	var out []model.DailyBar
	for _, b := range bars {
		if since == "" || b.Date >= since {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockFetcher) FetchIntradayBars(ctx context.Context, symbol, since string) ([]model.IntradayBar, error) {
	if err := m.hit(ctx, "intraday:"+symbol); err != nil {
		return nil, err
	}
	var out []model.IntradayBar
	for _, b := range m.Intraday[symbol] {
		if since == "" || b.DateTime >= since {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockFetcher) FetchHistory(ctx context.Context, symbol string) (*model.History, error) {
	if err := m.hit(ctx, "history:"+symbol); err != nil {
		return nil, err
	}
	daily, ok := m.Daily[symbol]
	if !ok {
		daily = generateMockBars(symbol, m.Price, 30, m.now())
	}
	return &model.History{Symbol: symbol, DailyData: daily, GranularData: m.Intraday[symbol]}, nil
}

func (m *MockFetcher) mockQuote(name string) model.Quote {
	return model.Quote{Name: name, Current: m.Price, Change: m.Price * 0.01, ChangePercent: 1}
}

func (m *MockFetcher) FetchMarketOverview(ctx context.Context) (model.MarketOverview, error) {
	if err := m.hit(ctx, "overview"); err != nil {
		return nil, err
	}
	return model.MarketOverview{"^GSPC": m.mockQuote("S&P 500")}, nil
}

func (m *MockFetcher) FetchMarketHistory(ctx context.Context, index, period string) ([]model.MarketHistoryPoint, error) {
	if err := m.hit(ctx, "market_history"); err != nil {
		return nil, err
	}
	if _, err := periodStart(period, m.now()); err != nil {
		return nil, &DataError{Op: "market_history", Err: err}
	}
	var out []model.MarketHistoryPoint
	for _, b := range generateMockBars(index, m.Price, 5, m.now()) {
		out = append(out, model.MarketHistoryPoint{Date: b.Date, Close: b.Close})
	}
	return out, nil
}

func (m *MockFetcher) FetchMarketSectors(ctx context.Context) (model.MarketSectors, error) {
	if err := m.hit(ctx, "sectors"); err != nil {
		return nil, err
	}
	return model.MarketSectors{"XLK": {Name: "Technology", Change: 1}}, nil
}

func (m *MockFetcher) FetchEconomicIndicators(ctx context.Context) (model.EconomicIndicators, error) {
	if err := m.hit(ctx, "economic"); err != nil {
		return nil, err
	}
	return model.EconomicIndicators{"^TNX": m.mockQuote("10Y Treasury Yield")}, nil
}

func (m *MockFetcher) FetchBitcoin(ctx context.Context) (model.Quote, error) {
	if err := m.hit(ctx, "bitcoin"); err != nil {
		return model.Quote{}, err
	}
	return m.mockQuote("Bitcoin"), nil
}

func (m *MockFetcher) FetchSymbols(ctx context.Context) ([]string, error) {
	if err := m.hit(ctx, "symbols"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m.Quotes))
	for s := range m.Quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func generateMockBars(symbol string, basePrice float64, count int, end time.Time) []model.DailyBar {
	bars := make([]model.DailyBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.DailyBar{
			Symbol: symbol,
			Date:   end.AddDate(0, 0, -(count - i)).UTC().Format(model.DateFormat),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
