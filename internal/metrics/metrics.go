// Package metrics holds the Prometheus collectors updated by fetch and
// process runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailrules_emails_fetched_total",
			Help: "Total number of emails read from the message source",
		},
	)

	// outcome: inserted, versioned, updated, unchanged, failed
	UpsertOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrules_upsert_outcomes_total",
			Help: "Total number of email upserts by outcome",
		},
		[]string{"outcome"},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrules_rule_matches_total",
			Help: "Total number of emails matched, by rule",
		},
		[]string{"rule"},
	)

	// status: applied, failed, dry_run
	ActionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrules_actions_total",
			Help: "Total number of rule actions, by type and status",
		},
		[]string{"type", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailrules_run_duration_seconds",
			Help:    "Duration of fetch and process runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"run", "status"},
	)
)

// RecordUpserts adds the counts of one batch upsert.
func RecordUpserts(inserted, versioned, updated, unchanged, failed int) {
	UpsertOutcomes.WithLabelValues("inserted").Add(float64(inserted))
	UpsertOutcomes.WithLabelValues("versioned").Add(float64(versioned))
	UpsertOutcomes.WithLabelValues("updated").Add(float64(updated))
	UpsertOutcomes.WithLabelValues("unchanged").Add(float64(unchanged))
	UpsertOutcomes.WithLabelValues("failed").Add(float64(failed))
}

// RecordAction counts one rule action.
func RecordAction(actionType, status string) {
	ActionsApplied.WithLabelValues(actionType, status).Inc()
}

// RecordRun observes the duration of a run named run ("fetch", "process").
func RecordRun(run string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	RunDuration.WithLabelValues(run, status).Observe(duration.Seconds())
}
