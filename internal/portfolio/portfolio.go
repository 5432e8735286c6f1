// Package portfolio values the user's holdings against cached quotes.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"StockTracker/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Holding is the valuation of one position.
type Holding struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostBasis decimal.Decimal `json:"avgCostBasis"`
	Price        decimal.Decimal `json:"price"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	Cost         decimal.Decimal `json:"cost"`
	Gain         decimal.Decimal `json:"gain"`
	GainPercent  decimal.Decimal `json:"gainPercent"`
	DayGain      decimal.Decimal `json:"dayGain"`
	PriceMissing bool            `json:"priceMissing,omitempty"`
}

// Summary is the total over all holdings.
type Summary struct {
	Holdings    []Holding       `json:"holdings"`
	MarketValue decimal.Decimal `json:"marketValue"`
	Cost        decimal.Decimal `json:"cost"`
	Gain        decimal.Decimal `json:"gain"`
	GainPercent decimal.Decimal `json:"gainPercent"`
	DayGain     decimal.Decimal `json:"dayGain"`
}

// Value computes the valuation of snap's position. A snapshot without a
// current price is valued at cost.
func Value(snap model.SymbolSnapshot) Holding {
	h := Holding{
		Symbol:       snap.Symbol,
		Quantity:     decimal.NewFromFloat(snap.Quantity.Float64),
		AvgCostBasis: decimal.NewFromFloat(snap.AvgCostBasis.Float64),
	}
	h.Cost = h.Quantity.Mul(h.AvgCostBasis)

	if !snap.CurrentPrice.Valid {
		h.PriceMissing = true
		h.Price = h.AvgCostBasis
	} else {
		h.Price = decimal.NewFromFloat(snap.CurrentPrice.Float64)
	}
	h.MarketValue = h.Quantity.Mul(h.Price)
	h.Gain = h.MarketValue.Sub(h.Cost)
	h.GainPercent = percent(h.Gain, h.Cost)
	if snap.DayChange.Valid {
		h.DayGain = h.Quantity.Mul(decimal.NewFromFloat(snap.DayChange.Float64))
	}
	return h
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// Summarize values every snapshot that carries a positive quantity.
func Summarize(snaps []model.SymbolSnapshot) Summary {
	s := Summary{Holdings: []Holding{}}
	for _, snap := range snaps {
		if !snap.Quantity.Valid || snap.Quantity.Float64 <= 0 {
			continue
		}
		h := Value(snap)
		s.Holdings = append(s.Holdings, h)
		s.MarketValue = s.MarketValue.Add(h.MarketValue)
		s.Cost = s.Cost.Add(h.Cost)
		s.DayGain = s.DayGain.Add(h.DayGain)
	}
	s.Gain = s.MarketValue.Sub(s.Cost)
	s.GainPercent = percent(s.Gain, s.Cost)
	return s
}

// Store is the part of the cache the book reads and writes.
type Store interface {
	GetSnapshots(ctx context.Context) ([]model.SymbolSnapshot, error)
	PutSnapshot(ctx context.Context, snap model.SymbolSnapshot) (model.SymbolSnapshot, bool, error)
}

// Book keeps holdings inside the snapshot cache.
type Book struct {
	store Store
}

func NewBook(st Store) *Book {
	return &Book{store: st}
}

// SetHolding writes only the user-owned fields of symbol; quote fields in the
// cache are left alone.
func (b *Book) SetHolding(ctx context.Context, symbol string, quantity, avgCost float64) (model.SymbolSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return model.SymbolSnapshot{}, errors.New("symbol is required")
	}
	if quantity < 0 || avgCost < 0 {
		return model.SymbolSnapshot{}, fmt.Errorf("holding %s: quantity and cost must not be negative", symbol)
	}
	snap, changed, err := b.store.PutSnapshot(ctx, model.Holding(symbol, quantity, avgCost))
	if err != nil {
		return snap, fmt.Errorf("set holding %s: %w", symbol, err)
	}
	if changed {
		log.Printf("[INFO] holding %s set to %g @ %g", symbol, quantity, avgCost)
	}
	return snap, nil
}

// Summary values the holdings currently in the cache.
func (b *Book) Summary(ctx context.Context) (Summary, error) {
	snaps, err := b.store.GetSnapshots(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load snapshots: %w", err)
	}
	return Summarize(snaps), nil
}
