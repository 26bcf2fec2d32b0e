// Package metrics registers the handful of counters and histograms this
// service exposes, per spec.md §11: enough domain surface for an external
// process to mount a scrape handler against, without this module owning
// the HTTP façade itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// WriteConflictRetries counts how many times a transactional write had to
// retry after colliding with SQLite's single-writer lock.
var WriteConflictRetries = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "inventory",
	Name:      "write_conflict_retries_total",
	Help:      "Number of times a transaction was retried after a write-lock conflict.",
})

// SparesRecomputeDuration observes how long a single catalogue item's
// number_of_spares recompute takes, measured inside Recompute from the
// spares-definition read through the final update (Lock is not included).
var SparesRecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "inventory",
	Name:      "spares_recompute_duration_seconds",
	Help:      "Duration of a single catalogue item spares recompute.",
	Buckets:   prometheus.DefBuckets,
})

// Registry is the process-wide collector registry. Registering here
// rather than against prometheus.DefaultRegisterer keeps this package
// free of import-order side effects on whatever scrape handler a caller
// eventually mounts.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(WriteConflictRetries, SparesRecomputeDuration)
}
