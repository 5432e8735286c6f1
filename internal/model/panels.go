package model

// Quote is a named price with its change, the shape shared by the overview,
// economic indicator and bitcoin panels.
type Quote struct {
	Name          string  `json:"name"`
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// MarketOverview maps an index key to its quote.
type MarketOverview map[string]Quote

// EconomicIndicators maps an indicator key to its quote.
type EconomicIndicators map[string]Quote

// MarketHistoryPoint is one close of an index history series.
type MarketHistoryPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// MarketSector is a sector's daily change in percent.
type MarketSector struct {
	Name   string  `json:"name"`
	Change float64 `json:"change"`
}

// MarketSectors maps a sector key to its change.
type MarketSectors map[string]MarketSector
