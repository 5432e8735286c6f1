// Package recorder keeps the telemetry of outbound upstream calls.
package recorder

import (
	"context"
	"time"

	"StockTracker/internal/model"
)

// Call describes one outbound request and its outcome.
type Call struct {
	Type     string // e.g. "fetchSingleStockData"
	Success  bool
	Duration time.Duration
	Request  any
	Response any
	Err      error
}

// Recorder logs calls and reports on what was logged.
type Recorder interface {
	// LogCall is best-effort: a failure to record is logged, never returned.
	LogCall(ctx context.Context, call Call)
	Totals(ctx context.Context) (model.APITotals, error)
	Day(ctx context.Context, date string) (*model.APICallAggregate, []model.APICallDetail, error)
	History(ctx context.Context) ([]model.APICallAggregate, error)
}
