package calculator

import (
	"errors"
	"math"

	"StockTracker/internal/model"
)

// Trading days per window.
const (
	Days52Weeks = 252
	Days30      = 22
)

// Range scans the last n bars and returns the highest high and lowest low.
// Fewer than n bars scans them all.
func Range(bars []model.DailyBar, n int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no daily bars provided")
	}
	if n <= 0 {
		return 0, 0, ErrPeriod
	}
	start := max(len(bars)-n, 0)
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars[start:] {
		hi, lo := b.High, b.Low
		// close-only rows from sparse sources
		if hi == 0 && lo == 0 {
			hi, lo = b.Close, b.Close
		}
		high = max(high, hi)
		low = min(low, lo)
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0.0~1.0.
func Position(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	return math.Min(math.Max(pos, 0), 1), nil
}
