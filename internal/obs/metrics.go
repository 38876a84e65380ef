package obs

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talentvibe",
			Subsystem: "tui",
			Name:      "submissions_total",
			Help:      "Analysis submissions by classified outcome.",
		},
		[]string{"outcome"},
	)
	submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "talentvibe",
			Subsystem: "tui",
			Name:      "submission_duration_seconds",
			Help:      "Time from request start to classified outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
	progressEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talentvibe",
			Subsystem: "tui",
			Name:      "progress_events_total",
			Help:      "Progress notifications received, by category.",
		},
		[]string{"category"},
	)
	redirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "talentvibe",
			Subsystem: "tui",
			Name:      "redirects_total",
			Help:      "Navigations to a job detail view.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, submissionDuration, progressEventsTotal, redirectsTotal)
}

// RecordSubmission counts a finished submission and its latency.
func RecordSubmission(outcome string, start time.Time) {
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	submissionsTotal.WithLabelValues(outcome).Inc()
	submissionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// RecordProgressEvent counts one inbound progress notification.
func RecordProgressEvent(category string) {
	progressEventsTotal.WithLabelValues(category).Inc()
}

// RecordRedirect counts a fired navigation.
func RecordRedirect() {
	redirectsTotal.Inc()
}

// ServeMetrics exposes /metrics on addr in the background. An empty addr
// disables the listener and returns nil.
func ServeMetrics(addr string, onError func(error)) *http.Server {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()
	return srv
}
