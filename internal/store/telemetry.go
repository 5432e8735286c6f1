package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"StockTracker/internal/model"
)

// LogCall appends one call detail and folds it into the aggregate of its day.
// Both writes commit together or not at all.
func (s *Store) LogCall(ctx context.Context, d model.APICallDetail) error {
	if d.ID == "" || d.Date == "" {
		return fmt.Errorf("log call: %w: missing id or date", ErrInvalidRecord)
	}
	if s.headless() {
		return nil
	}

	return s.withTx(ctx, "log call", func(tx *sql.Tx) error {
		agg, err := getAggregate(ctx, tx, d.Date)
		if err != nil {
			return err
		}
		if agg == nil {
			agg = &model.APICallAggregate{Date: d.Date}
		}
		agg.Add(d.Success, d.Duration)

		if _, err := tx.ExecContext(ctx, `INSERT INTO api_history
			(date, total_calls, total_duration, avg_duration, success_calls, failure_calls)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET total_calls = excluded.total_calls,
			total_duration = excluded.total_duration, avg_duration = excluded.avg_duration,
			success_calls = excluded.success_calls, failure_calls = excluded.failure_calls`,
			agg.Date, agg.TotalCalls, agg.TotalDuration, agg.AvgDuration, agg.SuccessCalls, agg.FailureCalls,
		); err != nil {
			return fmt.Errorf("write aggregate %s: %w", d.Date, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO api_call_details
			(id, date, time, type, duration, success, request_data, response_data, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Date, d.Time, d.Type, d.Duration, d.Success,
			nullText(d.RequestData), nullText(d.ResponseData), nullString(d.ErrorMessage),
		); err != nil {
			return fmt.Errorf("write call detail %s: %w", d.ID, err)
		}
		return nil
	})
}

func nullText(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func getAggregate(ctx context.Context, q querier, date string) (*model.APICallAggregate, error) {
	a := model.APICallAggregate{Date: date}
	err := q.QueryRowContext(ctx, `SELECT total_calls, total_duration, avg_duration, success_calls, failure_calls
		FROM api_history WHERE date = ?`, date).
		Scan(&a.TotalCalls, &a.TotalDuration, &a.AvgDuration, &a.SuccessCalls, &a.FailureCalls)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read aggregate %s: %w", date, err)
	}
	return &a, nil
}

// GetAPIHistory returns the aggregate of date, or nil when no call was logged.
func (s *Store) GetAPIHistory(ctx context.Context, date string) (*model.APICallAggregate, error) {
	if s.headless() {
		return nil, nil
	}
	return getAggregate(ctx, s.db, date)
}

// ListAPIHistory returns every daily aggregate ordered by date.
func (s *Store) ListAPIHistory(ctx context.Context) ([]model.APICallAggregate, error) {
	if s.headless() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, total_calls, total_duration, avg_duration, success_calls, failure_calls
		FROM api_history ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var out []model.APICallAggregate
	for rows.Next() {
		var a model.APICallAggregate
		if err := rows.Scan(&a.Date, &a.TotalCalls, &a.TotalDuration, &a.AvgDuration, &a.SuccessCalls, &a.FailureCalls); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAPICallDetails returns the calls logged on date in time order.
func (s *Store) GetAPICallDetails(ctx context.Context, date string) ([]model.APICallDetail, error) {
	if s.headless() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, time, type, duration, success,
		request_data, response_data, error_message
		FROM api_call_details WHERE date = ? ORDER BY time, id`, date)
	if err != nil {
		return nil, fmt.Errorf("query call details: %w", err)
	}
	defer rows.Close()

	var out []model.APICallDetail
	for rows.Next() {
		var (
			d                       model.APICallDetail
			req, resp, errorMessage sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Date, &d.Time, &d.Type, &d.Duration, &d.Success, &req, &resp, &errorMessage); err != nil {
			return nil, fmt.Errorf("scan call detail: %w", err)
		}
		if req.Valid {
			d.RequestData = []byte(req.String)
		}
		if resp.Valid {
			d.ResponseData = []byte(resp.String)
		}
		d.ErrorMessage = errorMessage.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetTotalAPICalls sums the call counts of every aggregate. Today is the
// count of the aggregate keyed by today.
func (s *Store) GetTotalAPICalls(ctx context.Context, today string) (model.APITotals, error) {
	totals := model.APITotals{DateRange: model.DateRange{Start: today, End: today}}
	if s.headless() {
		return totals, nil
	}

	var start, end sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_calls), 0), MIN(date), MAX(date) FROM api_history`).
		Scan(&totals.Lifetime, &start, &end)
	if err != nil {
		return totals, fmt.Errorf("sum aggregates: %w", err)
	}
	if start.Valid && end.Valid {
		totals.DateRange = model.DateRange{Start: start.String, End: end.String}
	}

	agg, err := getAggregate(ctx, s.db, today)
	if err != nil {
		return totals, err
	}
	if agg != nil {
		totals.Today = agg.TotalCalls
	}
	return totals, nil
}
