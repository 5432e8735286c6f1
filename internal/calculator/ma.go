// Package calculator derives technical figures from stored daily bars.
package calculator

import (
	"errors"

	"StockTracker/internal/model"
)

var (
	ErrPeriod       = errors.New("period must be positive")
	ErrNotEnoughBars = errors.New("not enough bars")
)

// SMA computes the simple moving average of the last period prices.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrPeriod
	}
	if len(prices) < period {
		return 0, ErrNotEnoughBars
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// MA returns the period-day simple moving average of closes.
func MA(bars []model.DailyBar, period int) (float64, error) {
	return SMA(Closes(bars), period)
}

// Closes extracts closing prices in bar order.
func Closes(bars []model.DailyBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
