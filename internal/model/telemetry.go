package model

import "encoding/json"

// APICallAggregate is the per-UTC-day rollup of outbound calls.
// TotalCalls always equals SuccessCalls + FailureCalls.
type APICallAggregate struct {
	Date          string  `json:"date"`
	TotalCalls    int64   `json:"totalCalls"`
	TotalDuration int64   `json:"totalDuration"` // milliseconds
	AvgDuration   float64 `json:"avgDuration"`
	SuccessCalls  int64   `json:"successCalls"`
	FailureCalls  int64   `json:"failureCalls"`
}

// Add folds one call into the aggregate and recomputes the average.
func (a *APICallAggregate) Add(success bool, durationMs int64) {
	a.TotalCalls++
	a.TotalDuration += durationMs
	a.AvgDuration = float64(a.TotalDuration) / float64(a.TotalCalls)
	if success {
		a.SuccessCalls++
	} else {
		a.FailureCalls++
	}
}

// APICallDetail is an immutable log row for a single outbound call.
type APICallDetail struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	Type         string          `json:"type"`
	Duration     int64           `json:"duration"` // milliseconds
	Success      bool            `json:"success"`
	RequestData  json.RawMessage `json:"requestData,omitempty"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// DateRange is an inclusive span of aggregate dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// APITotals summarizes call counts across all aggregate rows.
type APITotals struct {
	Today     int64     `json:"today"`
	Lifetime  int64     `json:"lifetime"`
	DateRange DateRange `json:"dateRange"`
}
