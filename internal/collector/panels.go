package collector

import (
	"context"
	"log"

	"StockTracker/internal/model"
)

// Market panels are fetched once per request and never cached.

func (c *Collector) MarketOverview(ctx context.Context) (model.MarketOverview, error) {
	return call(ctx, c.Recorder, CallOverview, map[string]string{}, c.Fetcher.FetchMarketOverview)
}

func (c *Collector) MarketHistory(ctx context.Context, index, period string) ([]model.MarketHistoryPoint, error) {
	return call(ctx, c.Recorder, CallMarketHist, map[string]string{"index": index, "period": period},
		func(ctx context.Context) ([]model.MarketHistoryPoint, error) {
			return c.Fetcher.FetchMarketHistory(ctx, index, period)
		})
}

func (c *Collector) MarketSectors(ctx context.Context) (model.MarketSectors, error) {
	return call(ctx, c.Recorder, CallSectors, map[string]string{}, c.Fetcher.FetchMarketSectors)
}

func (c *Collector) EconomicIndicators(ctx context.Context) (model.EconomicIndicators, error) {
	return call(ctx, c.Recorder, CallEconomic, map[string]string{}, c.Fetcher.FetchEconomicIndicators)
}

func (c *Collector) Bitcoin(ctx context.Context) (model.Quote, error) {
	return call(ctx, c.Recorder, CallBitcoin, map[string]string{}, c.Fetcher.FetchBitcoin)
}

func (c *Collector) Symbols(ctx context.Context) ([]string, error) {
	return call(ctx, c.Recorder, CallSymbols, map[string]string{}, c.Fetcher.FetchSymbols)
}

// ValidateSymbol reports whether the upstream knows symbol. Lookup failures
// count as unknown.
func (c *Collector) ValidateSymbol(ctx context.Context, symbol string) bool {
	_, err := call(ctx, c.Recorder, CallValidate, map[string]string{"symbol": symbol},
		func(ctx context.Context) (model.SymbolSnapshot, error) {
			return c.Fetcher.FetchQuote(ctx, symbol)
		})
	if err != nil {
		log.Printf("[WARN] validate %s: %v", symbol, err)
		return false
	}
	return true
}

// History returns the chart bundle of symbol, served from the history cache
// when an entry is still valid.
func (c *Collector) History(ctx context.Context, symbol string) (*model.History, error) {
	if c.Charts != nil {
		if h, ok := c.Charts.Get(ctx, symbol); ok {
			return h, nil
		}
	}
	h, err := call(ctx, c.Recorder, CallHistory, map[string]string{"symbol": symbol},
		func(ctx context.Context) (*model.History, error) {
			return c.Fetcher.FetchHistory(ctx, symbol)
		})
	if err != nil {
		return nil, err
	}
	if c.Charts != nil {
		c.Charts.Set(ctx, symbol, h)
	}
	return h, nil
}
