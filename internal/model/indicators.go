package model

// Indicators holds technical figures derived from stored daily bars.
type Indicators struct {
	Symbol      string  `json:"symbol"`
	Bars        int     `json:"bars"`
	LastClose   float64 `json:"lastClose"`
	MA50        float64 `json:"ma50"`
	MA200       float64 `json:"ma200"`
	RSI14       float64 `json:"rsi14"`
	High52w     float64 `json:"high52w"`
	Low52w      float64 `json:"low52w"`
	High30d     float64 `json:"high30d"`
	Low30d      float64 `json:"low30d"`
	Position52w float64 `json:"position52w"` // 0.0 ~ 1.0
}
