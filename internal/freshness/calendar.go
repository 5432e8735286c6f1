package freshness

import (
	"log"
	"time"
	_ "time/tzdata" // exchange zone must resolve on hosts without zoneinfo

	"StockTracker/internal/model"
)

// Calendar describes a regular exchange session in exchange-local time.
type Calendar struct {
	Location    *time.Location
	OpenMinute  int // minutes after local midnight
	CloseMinute int // inclusive
}

// NYSE returns the regular New York session, 09:30 to 16:00 Monday to Friday.
func NYSE() Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Printf("[WARN] load America/New_York: %v, falling back to fixed EST", err)
		loc = time.FixedZone("EST", -5*60*60)
	}
	return Calendar{Location: loc, OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}
}

func (c Calendar) local(t time.Time) time.Time {
	if c.Location == nil {
		return t.UTC()
	}
	return t.In(c.Location)
}

func isWeekday(t time.Time) bool {
	d := t.Weekday()
	return d != time.Saturday && d != time.Sunday
}

// Status reports whether the session is in progress at now.
func (c Calendar) Status(now time.Time) model.MarketStatus {
	local := c.local(now)
	if !isWeekday(local) {
		return model.MarketClosed
	}
	minute := local.Hour()*60 + local.Minute()
	if minute >= c.OpenMinute && minute <= c.CloseMinute {
		return model.MarketOpen
	}
	return model.MarketClosed
}

// SessionDate returns the exchange-local date (YYYY-MM-DD) of the most recent
// session that has started by now. Weekends and pre-open hours roll back to
// the previous weekday.
func (c Calendar) SessionDate(now time.Time) string {
	local := c.local(now)
	minute := local.Hour()*60 + local.Minute()
	if minute < c.OpenMinute {
		local = local.AddDate(0, 0, -1)
	}
	for !isWeekday(local) {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format(model.DateFormat)
}
