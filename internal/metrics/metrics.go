// Package metrics wires the real github.com/prometheus/client_golang
// registry, superseding the teacher's hand-rolled text exporter
// (src/chainadapter/metrics) now that a genuine Prometheus client is
// available in the dependency pack.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustora",
		Name:      "rpc_calls_total",
		Help:      "Total chain RPC calls made, by chain and outcome.",
	}, []string{"chain", "outcome"})

	RPCLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trustora",
		Name:      "rpc_latency_seconds",
		Help:      "Chain RPC call latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain"})

	ScanIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustora",
		Name:      "watcher_scan_iterations_total",
		Help:      "Chain watcher scan loop iterations, by chain and kind (normal/rescan).",
	}, []string{"chain", "kind"})

	DepositsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustora",
		Name:      "deposits_recorded_total",
		Help:      "Deposits recorded against an escrow, by chain and resulting status.",
	}, []string{"chain", "status"})

	PayoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustora",
		Name:      "payouts_total",
		Help:      "Payout attempts, by chain and outcome.",
	}, []string{"chain", "outcome"})
)

// Handler returns the standard Prometheus scrape handler, to be mounted at
// /metrics on each service's HTTP server.
func Handler() http.Handler {
	return promhttp.Handler()
}
