package calculator

import (
	"sort"

	"StockTracker/internal/model"
)

// Summarize derives the indicator set for symbol from its daily bars.
// Figures that need more history than is stored stay zero.
func Summarize(symbol string, bars []model.DailyBar) model.Indicators {
	ind := model.Indicators{Symbol: symbol, Bars: len(bars)}
	if len(bars) == 0 {
		return ind
	}
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date }) {
		sorted := make([]model.DailyBar, len(bars))
		copy(sorted, bars)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
		bars = sorted
	}
	ind.LastClose = bars[len(bars)-1].Close

	if v, err := MA(bars, 50); err == nil {
		ind.MA50 = v
	}
	if v, err := MA(bars, 200); err == nil {
		ind.MA200 = v
	}
	ind.RSI14, _ = RSI(bars, 14)
	ind.High52w, ind.Low52w, _ = Range(bars, Days52Weeks)
	ind.High30d, ind.Low30d, _ = Range(bars, Days30)
	ind.Position52w, _ = Position(ind.LastClose, ind.High52w, ind.Low52w)
	return ind
}
