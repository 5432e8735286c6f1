// Package freshness decides whether cached market data is current enough to
// serve without asking the upstream.
package freshness

import (
	"time"

	"StockTracker/internal/model"
)

const (
	// DefaultRefreshInterval is how long a cached snapshot stays fresh.
	DefaultRefreshInterval = 5 * time.Minute
	// DefaultRecencyWindow is how recent an update must be for its snapshot to
	// be stamped Open regardless of the calendar.
	DefaultRecencyWindow = 10 * time.Minute
)

// Policy holds the staleness thresholds and the exchange calendar.
type Policy struct {
	RefreshInterval time.Duration
	RecencyWindow   time.Duration
	Calendar        Calendar
}

// DefaultPolicy returns the 5 minute / 10 minute policy on the NYSE calendar.
func DefaultPolicy() Policy {
	return Policy{
		RefreshInterval: DefaultRefreshInterval,
		RecencyWindow:   DefaultRecencyWindow,
		Calendar:        NYSE(),
	}
}

// ShouldFetch reports whether data last updated at lastUpdated is stale at now.
// A zero lastUpdated means the data was never fetched.
func (p Policy) ShouldFetch(lastUpdated, now time.Time) bool {
	if lastUpdated.IsZero() {
		return true
	}
	return now.Sub(lastUpdated) > p.RefreshInterval
}

// ShouldFetchString is ShouldFetch over an ISO-8601 timestamp. Empty or
// unparseable values count as never fetched.
func (p Policy) ShouldFetchString(lastUpdated string, now time.Time) bool {
	t, ok := model.ParseTimestamp(lastUpdated)
	if !ok {
		return true
	}
	return p.ShouldFetch(t, now)
}

// CanSkipFetch reports whether cached data may be served as-is: only when it
// is fresh and the market is closed.
func CanSkipFetch(fresh bool, status model.MarketStatus) bool {
	return fresh && status == model.MarketClosed
}

// SnapshotStatus is the market status stamped on a snapshot. An update within
// the recency window means the market is treated as open; otherwise the
// calendar decides.
func (p Policy) SnapshotStatus(lastUpdated, now time.Time) model.MarketStatus {
	if !lastUpdated.IsZero() {
		age := now.Sub(lastUpdated)
		if age >= 0 && age < p.RecencyWindow {
			return model.MarketOpen
		}
	}
	return p.Calendar.Status(now)
}

// BatchStatus is the market status used for fetch and skip decisions.
func (p Policy) BatchStatus(now time.Time) model.MarketStatus {
	return p.Calendar.Status(now)
}

// NeedsDailyBars reports whether the daily series ending at lastDate lacks the
// most recent session.
func (p Policy) NeedsDailyBars(lastDate string, now time.Time) bool {
	d, ok := model.ParseDate(lastDate)
	if !ok {
		return true
	}
	return d < p.Calendar.SessionDate(now)
}

// NeedsIntradayBars reports whether the intraday series ending at lastDateTime
// is stale.
func (p Policy) NeedsIntradayBars(lastDateTime string, now time.Time) bool {
	return p.ShouldFetchString(lastDateTime, now)
}
