package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"StockTracker/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/guregu/null/v6"
	"golang.org/x/time/rate"
)

// APIOptions configures an APIFetcher.
type APIOptions struct {
	BaseURL           string
	ProxyURL          string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Burst             int
}

// APIFetcher implements Fetcher against the market-data HTTP backend.
type APIFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewAPIFetcher creates a fetcher with optional proxy and request pacing.
func NewAPIFetcher(opts APIOptions) *APIFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}

	f := &APIFetcher{client: client}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return f
}

func (f *APIFetcher) Name() string { return "api" }

// get fetches path and returns the raw body. Anything short of a 2xx/3xx
// response is a TransportError.
func (f *APIFetcher) get(ctx context.Context, op, path string, params map[string]string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}
	req := f.client.R().SetContext(ctx)
	for k, v := range params {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode() >= 400 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode(), Err: errors.New(resp.Status())}
	}
	return resp.Body(), nil
}

func (f *APIFetcher) getJSON(ctx context.Context, op, path string, params map[string]string, out any) error {
	body, err := f.get(ctx, op, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DataError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// quotePayload carries the upstream keys that are renamed on the way into a
// snapshot.
type quotePayload struct {
	TrailingPE   null.Float  `json:"trailingPE"`
	TotalRevenue null.Float  `json:"totalRevenue"`
	LongName     null.String `json:"longName"`
}

func (f *APIFetcher) FetchQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error) {
	op := "fetch quote " + symbol
	body, err := f.get(ctx, op, "/stock/"+url.PathEscape(symbol), nil)
	if err != nil {
		return model.SymbolSnapshot{}, err
	}
	snap, err := decodeQuote(symbol, body)
	if err != nil {
		return model.SymbolSnapshot{}, &DataError{Op: op, Err: err}
	}
	return snap, nil
}

func decodeQuote(symbol string, body []byte) (model.SymbolSnapshot, error) {
	var (
		snap model.SymbolSnapshot
		aux  quotePayload
	)
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("decode quote: %w", err)
	}
	if err := json.Unmarshal(body, &aux); err != nil {
		return snap, fmt.Errorf("decode quote: %w", err)
	}
	if !snap.CurrentPrice.Valid {
		return snap, errors.New("no current price in quote")
	}

	if snap.Symbol == "" {
		snap.Symbol = symbol
	}
	if aux.TrailingPE.Valid {
		snap.PERatio = aux.TrailingPE
	}
	if aux.TotalRevenue.Valid {
		snap.Revenue = aux.TotalRevenue
	}
	if aux.LongName.Valid && aux.LongName.String != "" {
		snap.Name = aux.LongName
	}
	deriveDayChange(&snap)

	// user-owned and locally computed fields never come from upstream
	snap.Quantity = null.Float{}
	snap.AvgCostBasis = null.Float{}
	snap.MarketStatus = ""
	return snap, nil
}

// deriveDayChange recomputes the day change from the current price and the
// previous close.
func deriveDayChange(snap *model.SymbolSnapshot) {
	if !snap.CurrentPrice.Valid || !snap.PreviousClose.Valid {
		return
	}
	change := snap.CurrentPrice.Float64 - snap.PreviousClose.Float64
	snap.DayChange = null.FloatFrom(change)
	pct := 0.0
	if snap.PreviousClose.Float64 != 0 {
		pct = change / snap.PreviousClose.Float64 * 100
	}
	snap.DayChangePercent = null.FloatFrom(pct)
}

// wireBar accepts both bar shapes the backend emits: lowercase keys with
// "date", and capitalized keys with "DateTime".
type wireBar struct {
	Date     string  `json:"date"`
	DateTime string  `json:"DateTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

func (b wireBar) when() string {
	if b.DateTime != "" {
		return b.DateTime
	}
	return b.Date
}

type wireHistory struct {
	Symbol       string    `json:"symbol"`
	DailyData    []wireBar `json:"daily_data"`
	GranularData []wireBar `json:"granular_data"`
}

func toDaily(symbol string, in []wireBar, since string) []model.DailyBar {
	out := make([]model.DailyBar, 0, len(in))
	for _, b := range in {
		d, ok := model.ParseDate(b.when())
		if !ok || (since != "" && d < since) {
			continue
		}
		out = append(out, model.DailyBar{Symbol: symbol, Date: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func toIntraday(symbol string, in []wireBar, since string) []model.IntradayBar {
	out := make([]model.IntradayBar, 0, len(in))
	for _, b := range in {
		k, ok := model.MinuteKey(b.when())
		if !ok || (since != "" && k < since) {
			continue
		}
		out = append(out, model.IntradayBar{Symbol: symbol, DateTime: k, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime < out[j].DateTime })
	return out
}

// decodeBars reads either a bare array of bars or a history object.
func decodeBars(body []byte) (bars []wireBar, hist *wireHistory, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &bars)
		return bars, nil, err
	}
	hist = &wireHistory{}
	err = json.Unmarshal(trimmed, hist)
	return hist.DailyData, hist, err
}

func (f *APIFetcher) FetchDailyBars(ctx context.Context, symbol, since string) ([]model.DailyBar, error) {
	op := "fetch daily bars " + symbol
	body, err := f.get(ctx, op, "/historical/"+url.PathEscape(symbol), map[string]string{"since": since})
	if err != nil {
		return nil, err
	}
	bars, _, err := decodeBars(body)
	if err != nil {
		return nil, &DataError{Op: op, Err: fmt.Errorf("decode bars: %w", err)}
	}
	sinceDate := ""
	if d, ok := model.ParseDate(since); ok {
		sinceDate = d
	}
	return toDaily(symbol, bars, sinceDate), nil
}

func (f *APIFetcher) FetchIntradayBars(ctx context.Context, symbol, since string) ([]model.IntradayBar, error) {
	op := "fetch intraday bars " + symbol
	var bars []wireBar
	if err := f.getJSON(ctx, op, "/granular/"+url.PathEscape(symbol), map[string]string{"since": since}, &bars); err != nil {
		return nil, err
	}
	sinceKey := ""
	if k, ok := model.MinuteKey(since); ok {
		sinceKey = k
	}
	return toIntraday(symbol, bars, sinceKey), nil
}

func (f *APIFetcher) FetchHistory(ctx context.Context, symbol string) (*model.History, error) {
	op := "fetch history " + symbol
	var h wireHistory
	if err := f.getJSON(ctx, op, "/historical/"+url.PathEscape(symbol), nil, &h); err != nil {
		return nil, err
	}
	return &model.History{
		Symbol:       symbol,
		DailyData:    toDaily(symbol, h.DailyData, ""),
		GranularData: toIntraday(symbol, h.GranularData, ""),
	}, nil
}

func (f *APIFetcher) FetchMarketOverview(ctx context.Context) (model.MarketOverview, error) {
	var out model.MarketOverview
	err := f.getJSON(ctx, "fetch market overview", "/market_overview", nil, &out)
	return out, err
}

func (f *APIFetcher) FetchMarketHistory(ctx context.Context, index, period string) ([]model.MarketHistoryPoint, error) {
	var out []model.MarketHistoryPoint
	err := f.getJSON(ctx, "fetch market history", "/market_history",
		map[string]string{"index": index, "period": period}, &out)
	return out, err
}

func (f *APIFetcher) FetchMarketSectors(ctx context.Context) (model.MarketSectors, error) {
	var out model.MarketSectors
	err := f.getJSON(ctx, "fetch market sectors", "/market_sectors", nil, &out)
	return out, err
}

func (f *APIFetcher) FetchEconomicIndicators(ctx context.Context) (model.EconomicIndicators, error) {
	var out model.EconomicIndicators
	err := f.getJSON(ctx, "fetch economic indicators", "/economic_indicators", nil, &out)
	return out, err
}

func (f *APIFetcher) FetchBitcoin(ctx context.Context) (model.Quote, error) {
	var out model.Quote
	err := f.getJSON(ctx, "fetch bitcoin", "/bitcoin", nil, &out)
	return out, err
}

func (f *APIFetcher) FetchSymbols(ctx context.Context) ([]string, error) {
	var out []string
	err := f.getJSON(ctx, "fetch symbols", "/symbols", nil, &out)
	return out, err
}
