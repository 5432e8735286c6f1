package collector

import (
	"context"

	"StockTracker/internal/model"
)

// Fetcher is an upstream market-data source.
//
// Errors are *TransportError when the request could not complete and
// *DataError when a response arrived but could not be used.
type Fetcher interface {
	Name() string

	FetchQuote(ctx context.Context, symbol string) (model.SymbolSnapshot, error)
	// FetchDailyBars returns daily bars dated on or after since. An empty
	// since returns the full history.
	FetchDailyBars(ctx context.Context, symbol, since string) ([]model.DailyBar, error)
	// FetchIntradayBars returns five-minute bars at or after since. An empty
	// since returns the most recent day.
	FetchIntradayBars(ctx context.Context, symbol, since string) ([]model.IntradayBar, error)
	FetchHistory(ctx context.Context, symbol string) (*model.History, error)

	FetchMarketOverview(ctx context.Context) (model.MarketOverview, error)
	FetchMarketHistory(ctx context.Context, index, period string) ([]model.MarketHistoryPoint, error)
	FetchMarketSectors(ctx context.Context) (model.MarketSectors, error)
	FetchEconomicIndicators(ctx context.Context) (model.EconomicIndicators, error)
	FetchBitcoin(ctx context.Context) (model.Quote, error)
	FetchSymbols(ctx context.Context) ([]string, error)
}
