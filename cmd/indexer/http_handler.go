package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Database  string          `json:"database"`
	Watchlist WatchlistHealth `json:"watchlist"`
}

type WatchlistHealth struct {
	Addresses int                `json:"addresses"`
	PerChain  map[enum.Chain]int `json:"per_chain"`
	LoadedAt  *time.Time         `json:"loaded_at,omitempty"`
}

type watchlistStatus interface {
	watchlist.Reader
	LastLoad() int64
}

type pinger interface {
	Ping(ctx context.Context) error
}

type IndexerHTTPHandler struct {
	version   string
	watchlist watchlistStatus
	db        pinger
}

func NewIndexerHTTPHandler(version string, wl watchlistStatus, db pinger) *IndexerHTTPHandler {
	return &IndexerHTTPHandler{version: version, watchlist: wl, db: db}
}

func (h *IndexerHTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (h *IndexerHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := h.watchlist.Current()
	wl := WatchlistHealth{
		Addresses: snap.Len(),
		PerChain:  make(map[enum.Chain]int, len(enum.AllChains)),
	}
	for _, c := range enum.AllChains {
		wl.PerChain[c] = snap.ChainLen(c)
	}
	if ts := h.watchlist.LastLoad(); ts > 0 {
		t := time.Unix(ts, 0).UTC()
		wl.LoadedAt = &t
	}

	resp := HealthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Database:  statusOK,
		Watchlist: wl,
	}
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logger.Warn("Health check: database unreachable", "err", err)
		resp.Status, resp.Database = statusDegraded, "unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode HTTP response", "err", err)
	}
}
