package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"StockTracker/internal/calculator"
	"StockTracker/internal/collector"
	"StockTracker/internal/model"

	"github.com/go-chi/chi/v5"
)

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

type healthReply struct {
	Status        string             `json:"status"`
	Environment   string             `json:"environment"`
	SchemaVersion uint               `json:"schemaVersion"`
	Provider      string             `json:"provider"`
	MarketStatus  model.MarketStatus `json:"marketStatus"`
	Refreshing    bool               `json:"refreshing"`
	LastRefresh   string             `json:"lastRefresh,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	at, _ := s.Scheduler.LastRefresh()
	reply := healthReply{
		Status:        "ok",
		Environment:   s.Store.Environment().String(),
		SchemaVersion: s.Store.SchemaVersion(),
		Provider:      s.Collector.Fetcher.Name(),
		MarketStatus:  s.Scheduler.MarketStatus(),
		Refreshing:    s.Scheduler.Running(),
	}
	if !at.IsZero() {
		reply.LastRefresh = at.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, reply)
}

type tabsReply struct {
	Tabs      []model.Tab `json:"tabs"`
	ActiveTab string      `json:"activeTab"`
}

func (s *Server) tabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tabsReply{Tabs: s.Config.Tabs, ActiveTab: s.Config.ActiveTab})
}

type marketStatusReply struct {
	Status      model.MarketStatus `json:"status"`
	SessionDate string             `json:"sessionDate"`
	Time        string             `json:"time"`
}

func (s *Server) marketStatus(w http.ResponseWriter, r *http.Request) {
	now := s.Scheduler.Now()
	writeJSON(w, http.StatusOK, marketStatusReply{
		Status:      s.Scheduler.Policy.BatchStatus(now),
		SessionDate: s.Scheduler.Policy.Calendar.SessionDate(now),
		Time:        now.UTC().Format(time.RFC3339),
	})
}

// listSnapshots returns every cached snapshot, or only those updated after
// ?since=<timestamp>.
func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	var (
		snaps []model.SymbolSnapshot
		err   error
	)
	if v := r.URL.Query().Get("since"); v != "" {
		since, ok := model.ParseTimestamp(v)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since %q", v))
			return
		}
		snaps, err = s.Store.SnapshotsUpdatedSince(r.Context(), since)
	} else {
		snaps, err = s.Store.GetSnapshots(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []model.SymbolSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	snap, err := s.Store.GetSnapshot(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s is not cached", symbol))
		return
	}
	writeJSON(w, http.StatusOK, *snap)
}

func (s *Server) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if err := s.Store.DeleteSnapshot(r.Context(), symbol); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": symbol})
}

type holdingRequest struct {
	Quantity     *float64 `json:"quantity"`
	AvgCostBasis *float64 `json:"avgCostBasis"`
}

func (s *Server) putHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	if req.Quantity == nil || req.AvgCostBasis == nil {
		writeError(w, http.StatusBadRequest, "quantity and avgCostBasis are required")
		return
	}
	snap, err := s.Book.SetHolding(r.Context(), symbolParam(r), *req.Quantity, *req.AvgCostBasis)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) dailyBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bars, err := s.Store.GetDailyBars(r.Context(), symbolParam(r), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = []model.DailyBar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

func (s *Server) intradayBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bars, err := s.Store.GetIntradayBars(r.Context(), symbolParam(r), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = []model.IntradayBar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

func (s *Server) indicators(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	bars, err := s.Store.GetDailyBars(r.Context(), symbol, "", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, calculator.Summarize(symbol, bars))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	h, err := s.Collector.History(r.Context(), symbolParam(r))
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, *h)
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Book.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type refreshRequest struct {
	Symbols []string `json:"symbols"`
}

// refresh runs a batch refresh of the posted symbols, or of the active tab
// when none are given. The batch runs on the scheduler's context, so a client
// disconnect or the request timeout does not cut it short.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			symbols = append(symbols, sym)
		}
	}

	var (
		res *collector.FetchResult
		ok  bool
	)
	ctx := s.Scheduler.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if len(symbols) > 0 {
		res, ok = s.Scheduler.Refresh(ctx, symbols)
	} else {
		res, ok = s.Scheduler.RefreshActiveTab(ctx)
	}
	if !ok {
		writeError(w, http.StatusConflict, "a refresh is already in progress")
		return
	}
	writeJSON(w, http.StatusOK, *res)
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Println("[INFO] market data cache cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type statsReply struct {
	Totals  model.APITotals          `json:"totals"`
	History []model.APICallAggregate `json:"history"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.Recorder.Totals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hist, err := s.Recorder.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hist == nil {
		hist = []model.APICallAggregate{}
	}
	writeJSON(w, http.StatusOK, statsReply{Totals: totals, History: hist})
}

type statsDayReply struct {
	Aggregate *model.APICallAggregate `json:"aggregate"`
	Calls     []model.APICallDetail   `json:"calls"`
}

func (s *Server) statsDay(w http.ResponseWriter, r *http.Request) {
	date, ok := model.ParseDate(chi.URLParam(r, "date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	agg, calls, err := s.Recorder.Day(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agg == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no calls on %s", date))
		return
	}
	writeJSON(w, http.StatusOK, statsDayReply{Aggregate: agg, Calls: calls})
}

func (s *Server) marketOverview(w http.ResponseWriter, r *http.Request) {
	out, err := s.Collector.MarketOverview(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) marketHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index := q.Get("index")
	if index == "" {
		index = "^GSPC"
	}
	period := q.Get("period")
	if period == "" {
		period = "1Y"
	}
	out, err := s.Collector.MarketHistory(r.Context(), index, period)
	if err != nil {
		upstreamError(w, err)
		return
	}
	if out == nil {
		out = []model.MarketHistoryPoint{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) marketSectors(w http.ResponseWriter, r *http.Request) {
	out, err := s.Collector.MarketSectors(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) economicIndicators(w http.ResponseWriter, r *http.Request) {
	out, err := s.Collector.EconomicIndicators(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) bitcoin(w http.ResponseWriter, r *http.Request) {
	out, err := s.Collector.Bitcoin(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) symbols(w http.ResponseWriter, r *http.Request) {
	out, err := s.Collector.Symbols(r.Context())
	if err != nil {
		upstreamError(w, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) validateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "valid": s.Collector.ValidateSymbol(r.Context(), symbol)})
}
