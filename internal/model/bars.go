package model

// DailyBar is one end-of-day OHLCV row, unique per (Symbol, Date).
type DailyBar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// IntradayBar is one five-minute OHLCV row, unique per (Symbol, DateTime).
type IntradayBar struct {
	Symbol   string  `json:"symbol"`
	DateTime string  `json:"DateTime"`
	Open     float64 `json:"Open"`
	High     float64 `json:"High"`
	Low      float64 `json:"Low"`
	Close    float64 `json:"Close"`
	Volume   float64 `json:"Volume"`
}

// History is the chart bundle served for the individual stock view.
type History struct {
	Symbol       string        `json:"symbol"`
	DailyData    []DailyBar    `json:"daily_data"`
	GranularData []IntradayBar `json:"granular_data"`
}
