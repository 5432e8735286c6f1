package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"StockTracker/internal/collector"
)

// Response is the envelope of every reply.
type Response[T any] struct {
	Data  *T     `json:"data"`
	Error string `json:"error"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response[T]{Data: &data}); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response[any]{Error: msg}); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

// upstreamError maps a fetch failure to a status code.
func upstreamError(w http.ResponseWriter, err error) {
	var de *collector.DataError
	switch {
	case collector.IsTransport(err):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &de):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
