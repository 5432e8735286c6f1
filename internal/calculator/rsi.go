package calculator

import "StockTracker/internal/model"

// RSI computes the Wilder-smoothed RSI over period.
// Requires at least period+1 bars. Returns 50.0 if data is insufficient.
func RSI(bars []model.DailyBar, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrPeriod
	}
	if len(bars) < period+1 {
		return 50.0, nil
	}
	closes := Closes(bars)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := max(change, 0), max(-change, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0, nil
		}
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
