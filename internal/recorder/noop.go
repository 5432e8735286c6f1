package recorder

import (
	"context"

	"StockTracker/internal/model"
)

// NoopRecorder drops every call. Used for headless runs and tests.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) LogCall(_ context.Context, _ Call) {}

func (n *NoopRecorder) Totals(_ context.Context) (model.APITotals, error) {
	return model.APITotals{}, nil
}

func (n *NoopRecorder) Day(_ context.Context, _ string) (*model.APICallAggregate, []model.APICallDetail, error) {
	return nil, nil, nil
}

func (n *NoopRecorder) History(_ context.Context) ([]model.APICallAggregate, error) {
	return nil, nil
}
