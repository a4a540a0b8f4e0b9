package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Post results.
const (
	PostCreated        = "created"
	PostQuotaExceeded  = "quota_exceeded"
	PostInvalid        = "invalid"
	PostUpstreamFailed = "upstream_failed"
	PostStoreFailed    = "store_failed"
	PostInProgress     = "in_progress"
)

// Metrics holds the business counters exported at /metrics.
type Metrics struct {
	PostsTotal          *prometheus.CounterVec
	PostCommitFailures  prometheus.Counter
	MonthlyResetsTotal  prometheus.Counter
	BillingEventsTotal  *prometheus.CounterVec
	UpstreamErrorsTotal *prometheus.CounterVec
}

// New creates the metrics and registers them on registry. A nil registry
// leaves them unregistered, which is what tests want.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_posts_total",
				Help: "Post attempts by result",
			},
			[]string{"result"},
		),
		PostCommitFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_post_commit_failures_total",
				Help: "Posts that succeeded upstream but whose usage counters could not be stored",
			},
		),
		MonthlyResetsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_monthly_resets_total",
				Help: "Profiles whose monthly counter was reset by the scheduled sweep",
			},
		),
		BillingEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_billing_events_total",
				Help: "Billing webhook events by kind and result",
			},
			[]string{"kind", "result"},
		),
		UpstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_upstream_post_errors_total",
				Help: "Social API rejections by kind",
			},
			[]string{"kind"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.PostsTotal,
			m.PostCommitFailures,
			m.MonthlyResetsTotal,
			m.BillingEventsTotal,
			m.UpstreamErrorsTotal,
		)
	}

	return m
}
