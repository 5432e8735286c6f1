package collector

import (
	"errors"
	"fmt"
)

// TransportError is a failed request: network failure, timeout or an HTTP
// error status. It is retried.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataError is a response that arrived but could not be decoded or holds no
// usable data. It is not retried.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *DataError) Unwrap() error { return e.Err }

// Stage names one step of a symbol refresh.
type Stage string

const (
	StageQuote    Stage = "quote"
	StageDaily    Stage = "daily"
	StageIntraday Stage = "intraday"
)

// StageError is the failure of one stage for one symbol.
type StageError struct {
	Symbol string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
