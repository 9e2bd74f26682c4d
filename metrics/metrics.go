package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Name:      "wallet_sync_runs_total",
			Help:      "Wallet reconciliation runs by outcome.",
		},
		[]string{"status"}, // success | error | busy
	)

	SyncNewTransactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crm",
			Name:      "wallet_sync_new_transactions_total",
			Help:      "Transactions inserted by reconciliation.",
		},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "crm",
			Name:      "wallet_sync_duration_seconds",
			Help:      "Wall time of one wallet reconciliation.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	BridgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Name:      "bridge_requests_total",
			Help:      "Requests sent to the Bridge API by operation and status code.",
		},
		[]string{"operation", "code"},
	)

	ProfileCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crm",
			Name:      "profile_cache_lookups_total",
			Help:      "Profile cache lookups by result.",
		},
		[]string{"result"}, // hit | miss
	)
)

// MustRegister registers every collector on the default registry.
func MustRegister() {
	prometheus.MustRegister(
		SyncRunsTotal,
		SyncNewTransactionsTotal,
		SyncDuration,
		BridgeRequestsTotal,
		ProfileCacheLookups,
	)
}
