package services

import "github.com/prometheus/client_golang/prometheus"

var (
	syncRunsCounter          *prometheus.CounterVec
	dealsAddedCounter        prometheus.Counter
	dealsUpdatedCounter      prometheus.Counter
	verificationCallsCounter *prometheus.CounterVec
)

func init() {
	syncRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_sync_runs_total",
			Help: "Total number of sync runs by final status.",
		},
		[]string{"status"},
	)
	dealsAddedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deals_added_total",
			Help: "Total number of new deals added to the database.",
		},
	)
	dealsUpdatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deals_updated_total",
			Help: "Total number of existing deals updated by a sync.",
		},
	)
	verificationCallsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_verification_calls_total",
			Help: "Total number of external verification calls by outcome.",
		},
		[]string{"outcome"},
	)
	prometheus.MustRegister(syncRunsCounter, dealsAddedCounter, dealsUpdatedCounter, verificationCallsCounter)
}
