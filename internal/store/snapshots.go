package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockTracker/internal/merge"
	"StockTracker/internal/model"

	"github.com/guregu/null/v6"
)

// indexTimeFormat keeps last_updated lexically ordered.
const indexTimeFormat = "2006-01-02T15:04:05.000000Z"

func indexTime(lastUpdated null.String) string {
	if !lastUpdated.Valid {
		return ""
	}
	t, ok := model.ParseTimestamp(lastUpdated.String)
	if !ok {
		return ""
	}
	return t.UTC().Format(indexTimeFormat)
}

func scanSnapshot(data string) (model.SymbolSnapshot, error) {
	var snap model.SymbolSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshot returns the cached snapshot of symbol, or nil when there is none.
func (s *Store) GetSnapshot(ctx context.Context, symbol string) (*model.SymbolSnapshot, error) {
	if s.headless() {
		return nil, nil
	}
	return getSnapshot(ctx, s.db, symbol)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSnapshot(ctx context.Context, q querier, symbol string) (*model.SymbolSnapshot, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM symbols WHERE symbol = ?`, symbol).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", symbol, err)
	}
	snap, err := scanSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", symbol, err)
	}
	return &snap, nil
}

// GetSnapshots returns every cached snapshot ordered by symbol.
func (s *Store) GetSnapshots(ctx context.Context) ([]model.SymbolSnapshot, error) {
	if s.headless() {
		return nil, nil
	}
	return s.querySnapshots(ctx, `SELECT data FROM symbols ORDER BY symbol`)
}

// SnapshotsUpdatedSince returns the snapshots whose lastUpdated is at or after
// since, oldest first.
func (s *Store) SnapshotsUpdatedSince(ctx context.Context, since time.Time) ([]model.SymbolSnapshot, error) {
	if s.headless() {
		return nil, nil
	}
	return s.querySnapshots(ctx,
		`SELECT data FROM symbols WHERE last_updated >= ? ORDER BY last_updated, symbol`,
		since.UTC().Format(indexTimeFormat))
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]model.SymbolSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.SymbolSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := scanSnapshot(data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// GetLastUpdated returns the lastUpdated stamp of symbol, empty when the
// symbol is not cached or has never been stamped.
func (s *Store) GetLastUpdated(ctx context.Context, symbol string) (string, error) {
	snap, err := s.GetSnapshot(ctx, symbol)
	if err != nil || snap == nil {
		return "", err
	}
	return snap.LastUpdated.String, nil
}

// PutSnapshot merges snap into the cached snapshot of the same symbol and
// writes the result only when a field changed. Fields snap does not carry are
// left as cached, and a cached lastUpdated never moves backwards. It returns
// the snapshot as stored and whether a write happened.
func (s *Store) PutSnapshot(ctx context.Context, snap model.SymbolSnapshot) (model.SymbolSnapshot, bool, error) {
	snap.Symbol = strings.TrimSpace(snap.Symbol)
	if snap.Symbol == "" {
		return snap, false, fmt.Errorf("put snapshot: %w: empty symbol", ErrInvalidRecord)
	}
	if s.headless() {
		return snap, false, nil
	}

	var (
		merged  model.SymbolSnapshot
		changed bool
	)
	err := s.withTx(ctx, "put snapshot "+snap.Symbol, func(tx *sql.Tx) error {
		existing, err := getSnapshot(ctx, tx, snap.Symbol)
		if err != nil {
			return err
		}
		if existing != nil && existing.LastUpdated.Valid && snap.LastUpdated.Valid {
			if indexTime(snap.LastUpdated) < indexTime(existing.LastUpdated) {
				snap.LastUpdated = null.String{}
			}
		}

		merged, changed, err = merge.Record(existing, snap)
		if err != nil {
			return fmt.Errorf("merge snapshot: %w", err)
		}
		if !changed {
			return nil
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO symbols (symbol, last_updated, data) VALUES (?, ?, ?)
			ON CONFLICT(symbol) DO UPDATE SET last_updated = excluded.last_updated, data = excluded.data`,
			merged.Symbol, indexTime(merged.LastUpdated), string(data))
		return err
	})
	if err != nil {
		return snap, false, err
	}
	return merged, changed, nil
}

// DeleteSnapshot removes symbol from the cache together with its bars.
func (s *Store) DeleteSnapshot(ctx context.Context, symbol string) error {
	if s.headless() {
		return nil
	}
	return s.withTx(ctx, "delete "+symbol, func(tx *sql.Tx) error {
		for _, table := range []string{"symbols", "daily_bars", "intraday_bars"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE symbol = ?", symbol); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
}
