package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "liqwatch"

// Results used as label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// ============ Polling ============

// PollCycles counts poll cycles by result (ok, error).
var PollCycles = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Poll cycles by result",
	},
	[]string{"result"},
)

// PollCycleDuration observes the wall time of completed cycles.
var PollCycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of poll cycles",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	},
)

// WalletEvaluations counts per-wallet evaluations by result.
var WalletEvaluations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "wallet_evaluations_total",
		Help:      "Wallet evaluations by result",
	},
	[]string{"result"},
)

// LastCycleTimestamp is the unix time of the last completed cycle.
var LastCycleTimestamp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time of the last completed poll cycle",
	},
)

// ============ Alerts ============

// AlertsSent counts delivered alerts by kind and result.
var AlertsSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Alert deliveries by kind and result",
	},
	[]string{"kind", "result"},
)

// OutboxDepth is the number of alerts waiting to be delivered.
var OutboxDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "outbox_depth",
		Help:      "Alerts queued for delivery",
	},
)

// ============ Stream ============

// StreamState is the current stream state (0 disconnected, 1 connecting, 2 connected).
var StreamState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "state",
		Help:      "Stream connection state: 0 disconnected, 1 connecting, 2 connected",
	},
)

// StreamReconnects counts connection attempts after the first.
var StreamReconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "reconnects_total",
		Help:      "Stream reconnection attempts",
	},
)

// StreamMessages counts decoded stream messages by channel.
var StreamMessages = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "messages_total",
		Help:      "Stream messages by channel",
	},
	[]string{"channel"},
)

// StreamDroppedFrames counts frames discarded because the consumer fell
// behind and the client's message buffer was full.
var StreamDroppedFrames = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "dropped_frames_total",
		Help:      "Stream frames dropped on a full message buffer",
	},
)

// LiquidationEvents counts aggregated liquidation events by direction.
var LiquidationEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "liquidation_events_total",
		Help:      "Aggregated liquidation events by direction",
	},
	[]string{"direction"},
)

// LiquidatedNotional sums liquidated notional in USD by coin.
var LiquidatedNotional = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "liquidated_notional_usd_total",
		Help:      "Liquidated notional in USD by coin",
	},
	[]string{"coin"},
)

// ============ Registry ============

// RegistryWallets is the number of monitored wallets.
var RegistryWallets = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "wallets",
		Help:      "Number of monitored wallets",
	},
)

// ============ Helpers ============

// RecordCycle records the outcome of one poll cycle.
func RecordCycle(result string, d time.Duration) {
	PollCycles.WithLabelValues(result).Inc()
	if result == ResultOK {
		PollCycleDuration.Observe(d.Seconds())
		LastCycleTimestamp.SetToCurrentTime()
	}
}

// RecordEvaluation records one wallet evaluation.
func RecordEvaluation(result string) {
	WalletEvaluations.WithLabelValues(result).Inc()
}

// RecordAlert records one alert delivery.
func RecordAlert(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	AlertsSent.WithLabelValues(kind, result).Inc()
}

// SetStreamState records the stream state.
func SetStreamState(state int) {
	StreamState.Set(float64(state))
}

// RecordLiquidation records one aggregated liquidation event.
func RecordLiquidation(direction string, notionalByCoin map[string]float64) {
	LiquidationEvents.WithLabelValues(direction).Inc()
	for coin, notional := range notionalByCoin {
		LiquidatedNotional.WithLabelValues(coin).Add(notional)
	}
}
