package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"StockTracker/internal/merge"
	"StockTracker/internal/model"
)

// barRow is the column set shared by daily and intraday bars. Key is the date
// for daily bars and the minute timestamp for intraday bars.
type barRow struct {
	Symbol string  `json:"symbol"`
	Key    string  `json:"key"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type barTable struct {
	name   string
	keyCol string
}

var (
	dailyTable    = barTable{name: "daily_bars", keyCol: "date"}
	intradayTable = barTable{name: "intraday_bars", keyCol: "date_time"}
)

// GetDailyBars returns the daily bars of symbol with start <= date <= end,
// oldest first. An empty bound is open.
func (s *Store) GetDailyBars(ctx context.Context, symbol, start, end string) ([]model.DailyBar, error) {
	if s.headless() {
		return nil, nil
	}
	lo, hi := dailyBound(start), dailyBound(end)
	rows, err := s.queryBars(ctx, dailyTable, symbol, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]model.DailyBar, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.DailyBar{
			Symbol: r.Symbol, Date: r.Key,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return out, nil
}

// GetIntradayBars returns the intraday bars of symbol with start <= DateTime
// <= end, oldest first. A date-only end includes that whole day.
func (s *Store) GetIntradayBars(ctx context.Context, symbol, start, end string) ([]model.IntradayBar, error) {
	if s.headless() {
		return nil, nil
	}
	lo := intradayBound(start)
	hi := intradayBound(end)
	if hi != "" && len(strings.TrimSpace(end)) == len(model.DateFormat) {
		hi = strings.TrimSpace(end) + "T23:59:59Z"
	}
	rows, err := s.queryBars(ctx, intradayTable, symbol, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]model.IntradayBar, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.IntradayBar{
			Symbol: r.Symbol, DateTime: r.Key,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return out, nil
}

func dailyBound(s string) string {
	d, ok := model.ParseDate(s)
	if !ok {
		return ""
	}
	return d
}

func intradayBound(s string) string {
	k, ok := model.MinuteKey(s)
	if !ok {
		return ""
	}
	return k
}

func (s *Store) queryBars(ctx context.Context, t barTable, symbol, lo, hi string) ([]barRow, error) {
	query := fmt.Sprintf(`SELECT symbol, %s, open, high, low, close, volume FROM %s WHERE symbol = ?`, t.keyCol, t.name)
	args := []any{symbol}
	if lo != "" {
		query += fmt.Sprintf(" AND %s >= ?", t.keyCol)
		args = append(args, lo)
	}
	if hi != "" {
		query += fmt.Sprintf(" AND %s <= ?", t.keyCol)
		args = append(args, hi)
	}
	query += " ORDER BY " + t.keyCol

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []barRow
	for rows.Next() {
		var r barRow
		if err := rows.Scan(&r.Symbol, &r.Key, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastDailyBarDate returns the most recent stored date of symbol, empty when
// none is stored.
func (s *Store) LastDailyBarDate(ctx context.Context, symbol string) (string, error) {
	return s.lastKey(ctx, dailyTable, symbol)
}

// LastIntradayBarTime returns the most recent stored intraday timestamp of
// symbol, empty when none is stored.
func (s *Store) LastIntradayBarTime(ctx context.Context, symbol string) (string, error) {
	return s.lastKey(ctx, intradayTable, symbol)
}

func (s *Store) lastKey(ctx context.Context, t barTable, symbol string) (string, error) {
	if s.headless() {
		return "", nil
	}
	var key sql.NullString
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT MAX(%s) FROM %s WHERE symbol = ?`, t.keyCol, t.name), symbol).Scan(&key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("last %s key: %w", t.name, err)
	}
	return key.String, nil
}

// PutDailyBars merges bars into the stored daily series of symbol. Bars
// without a parseable date are skipped. It returns the number of rows
// inserted or changed.
func (s *Store) PutDailyBars(ctx context.Context, symbol string, bars []model.DailyBar) (int, error) {
	rows := make([]barRow, 0, len(bars))
	for _, b := range bars {
		d, ok := model.ParseDate(b.Date)
		if !ok {
			log.Printf("[WARN] skipping daily bar of %s with invalid date %q", symbol, b.Date)
			continue
		}
		rows = append(rows, barRow{Symbol: symbol, Key: d, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	return s.putBars(ctx, dailyTable, symbol, rows)
}

// PutIntradayBars merges bars into the stored intraday series of symbol.
// Timestamps are normalized to the UTC minute. Bars without a parseable
// timestamp are skipped. It returns the number of rows inserted or changed.
func (s *Store) PutIntradayBars(ctx context.Context, symbol string, bars []model.IntradayBar) (int, error) {
	rows := make([]barRow, 0, len(bars))
	for _, b := range bars {
		k, ok := model.MinuteKey(b.DateTime)
		if !ok {
			log.Printf("[WARN] skipping intraday bar of %s with invalid time %q", symbol, b.DateTime)
			continue
		}
		rows = append(rows, barRow{Symbol: symbol, Key: k, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
	}
	return s.putBars(ctx, intradayTable, symbol, rows)
}

func (s *Store) putBars(ctx context.Context, t barTable, symbol string, rows []barRow) (int, error) {
	if strings.TrimSpace(symbol) == "" {
		return 0, fmt.Errorf("put %s: %w: empty symbol", t.name, ErrInvalidRecord)
	}
	if s.headless() || len(rows) == 0 {
		return 0, nil
	}

	written := 0
	selectQ := fmt.Sprintf(`SELECT open, high, low, close, volume FROM %s WHERE symbol = ? AND %s = ?`, t.name, t.keyCol)
	upsertQ := fmt.Sprintf(`INSERT INTO %[1]s (symbol, %[2]s, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, %[2]s) DO UPDATE SET open = excluded.open, high = excluded.high,
		low = excluded.low, close = excluded.close, volume = excluded.volume`, t.name, t.keyCol)

	err := s.withTx(ctx, "put "+t.name+" "+symbol, func(tx *sql.Tx) error {
		for _, r := range rows {
			var existing *barRow
			old := barRow{Symbol: r.Symbol, Key: r.Key}
			err := tx.QueryRowContext(ctx, selectQ, r.Symbol, r.Key).Scan(&old.Open, &old.High, &old.Low, &old.Close, &old.Volume)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("read %s %s: %w", r.Symbol, r.Key, err)
			default:
				existing = &old
			}

			merged, changed, err := merge.Record(existing, r)
			if err != nil {
				return fmt.Errorf("merge %s %s: %w", r.Symbol, r.Key, err)
			}
			if !changed {
				continue
			}
			if _, err := tx.ExecContext(ctx, upsertQ, merged.Symbol, merged.Key,
				merged.Open, merged.High, merged.Low, merged.Close, merged.Volume); err != nil {
				return fmt.Errorf("write %s %s: %w", r.Symbol, r.Key, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
