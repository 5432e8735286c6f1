package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"StockTracker/internal/model"

	"github.com/google/uuid"
)

// CallStore is the persistence the StoreRecorder writes through.
type CallStore interface {
	LogCall(ctx context.Context, d model.APICallDetail) error
	GetTotalAPICalls(ctx context.Context, today string) (model.APITotals, error)
	GetAPIHistory(ctx context.Context, date string) (*model.APICallAggregate, error)
	GetAPICallDetails(ctx context.Context, date string) ([]model.APICallDetail, error)
	ListAPIHistory(ctx context.Context) ([]model.APICallAggregate, error)
}

// StoreRecorder persists call details and daily aggregates to a CallStore.
type StoreRecorder struct {
	store CallStore
	now   func() time.Time
}

// NewStoreRecorder creates a recorder over st. A nil now uses time.Now.
func NewStoreRecorder(st CallStore, now func() time.Time) *StoreRecorder {
	if now == nil {
		now = time.Now
	}
	return &StoreRecorder{store: st, now: now}
}

// Detail builds the log row for call at time at.
func Detail(call Call, at time.Time) model.APICallDetail {
	at = at.UTC()
	date := model.UTCDate(at)
	stamp := at.Format(time.RFC3339)
	d := model.APICallDetail{
		ID:           fmt.Sprintf("%s-%s-%s-%s", date, stamp, call.Type, uuid.NewString()),
		Date:         date,
		Time:         stamp,
		Type:         call.Type,
		Duration:     call.Duration.Milliseconds(),
		Success:      call.Success && call.Err == nil,
		RequestData:  payload(call.Request),
		ResponseData: payload(call.Response),
	}
	if call.Err != nil {
		d.ErrorMessage = call.Err.Error()
	}
	return d
}

func payload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WARN] telemetry payload dropped: %v", err)
		return nil
	}
	return data
}

func (r *StoreRecorder) LogCall(ctx context.Context, call Call) {
	d := Detail(call, r.now())
	if err := r.store.LogCall(ctx, d); err != nil {
		log.Printf("[WARN] record %s call: %v", call.Type, err)
	}
}

func (r *StoreRecorder) Totals(ctx context.Context) (model.APITotals, error) {
	return r.store.GetTotalAPICalls(ctx, model.UTCDate(r.now()))
}

func (r *StoreRecorder) Day(ctx context.Context, date string) (*model.APICallAggregate, []model.APICallDetail, error) {
	agg, err := r.store.GetAPIHistory(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	details, err := r.store.GetAPICallDetails(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	return agg, details, nil
}

func (r *StoreRecorder) History(ctx context.Context) ([]model.APICallAggregate, error) {
	return r.store.ListAPIHistory(ctx)
}
