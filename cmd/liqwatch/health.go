package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/liqwatch/internal/connection"
	"github.com/rickgao/liqwatch/internal/liquidation"
	"github.com/rickgao/liqwatch/internal/poller"
)

// CycleSource reports the last poll cycle.
type CycleSource interface {
	LastCycle() poller.CycleResult
}

// StreamSource reports the liquidation watcher status.
type StreamSource interface {
	Status() liquidation.Status
}

// WalletSource reports the monitored wallets.
type WalletSource interface {
	Snapshot() map[string][]int64
	SubscriptionCount() int
}

type pendingCounter interface {
	Pending() int
}

type handlerDeps struct {
	poller   CycleSource
	stream   StreamSource // nil when the stream is disabled
	outbox   pendingCounter
	registry WalletSource

	// streamGrace is how long the stream may stay down before /health
	// reports unhealthy. Zero never reports unhealthy.
	streamGrace time.Duration
	metricsPath string
}

// newHandler creates the HTTP handler for health checks, metrics and debug
// endpoints.
func newHandler(deps handlerDeps) http.Handler {
	r := mux.NewRouter()

	metricsPath := deps.metricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		last := deps.poller.LastCycle()
		cycle := map[string]any{
			"id":        last.ID,
			"wallets":   last.Wallets,
			"evaluated": last.Evaluated,
			"failed":    last.Failed,
			"alerted":   last.Alerted,
		}
		if !last.StartedAt.IsZero() {
			cycle["started_at"] = last.StartedAt.UTC().Format(time.RFC3339)
			cycle["duration"] = last.Duration.String()
		}
		if last.Err != nil {
			health.Status = "degraded"
			cycle["error"] = last.Err.Error()
		}
		health.Components["poller"] = cycle

		if deps.stream != nil {
			s := deps.stream.Status()
			stream := map[string]any{
				"state":      s.State.String(),
				"reconnects": s.Reconnects,
				"events":     s.Events,
			}
			if s.State == connection.StateConnected {
				stream["conn_id"] = s.ConnectionID
				stream["connected_at"] = s.ConnectedAt.UTC().Format(time.RFC3339)
			} else {
				health.Status = "degraded"
				stream["next_retry"] = s.NextDelay.String()
				if !s.DownSince.IsZero() {
					down := time.Since(s.DownSince)
					stream["down_for"] = down.Round(time.Second).String()
					if deps.streamGrace > 0 && down > deps.streamGrace {
						health.Status = "unhealthy"
					}
				}
			}
			health.Components["stream"] = stream
		} else {
			health.Components["stream"] = "disabled"
		}

		health.Components["outbox"] = map[string]any{"pending": deps.outbox.Pending()}
		health.Components["wallets"] = len(deps.registry.Snapshot())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	}).Methods(http.MethodGet)

	r.HandleFunc("/debug/wallets", func(w http.ResponseWriter, _ *http.Request) {
		wallets := deps.registry.Snapshot()

		type entry struct {
			Address     string `json:"address"`
			Subscribers int    `json:"subscribers"`
		}
		entries := make([]entry, 0, len(wallets))
		for addr, subs := range wallets {
			entries = append(entries, entry{Address: addr, Subscribers: len(subs)})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":         len(entries),
			"subscriptions": deps.registry.SubscriptionCount(),
			"wallets":       entries,
		})
	}).Methods(http.MethodGet)

	return r
}
