package tasks

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "albumsheets"

// NewMetricsRegistry returns a registry holding gauges for the outcome of result.
func NewMetricsRegistry(result *Result) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "records",
		Help:      "Records handled by the last migration run, by outcome.",
	}, []string{"outcome"})
	records.WithLabelValues("fetched").Set(float64(result.Counters.Fetched))
	records.WithLabelValues("written").Set(float64(result.Counters.Written))
	records.WithLabelValues("truncated").Set(float64(result.Counters.Truncated))
	records.WithLabelValues("failed").Set(float64(result.Counters.Failed))
	records.WithLabelValues("unfetched").Set(float64(result.Counters.Unfetched))

	expected := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "expected_rows",
		Help:      "Source row counts snapshotted before transfer, by table.",
	}, []string{"table"})
	expected.WithLabelValues("primary").Set(float64(result.ExpectedPrimary))
	expected.WithLabelValues("aux").Set(float64(result.ExpectedAux))

	skipped := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "pages_skipped",
		Help:      "Source pages skipped after a failed fetch.",
	})
	skipped.Set(float64(result.Counters.PagesSkipped))

	verified := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "run_verified",
		Help:      "1 if the last run passed reconciliation.",
	})
	if result.Verified {
		verified.Set(1)
	}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	})
	duration.Set(result.Duration.Seconds())

	completed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "run_completed_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	completed.Set(float64(time.Now().Unix()))

	reg.MustRegister(records, expected, skipped, verified, duration, completed)
	return reg
}

// WriteMetrics writes the result as a node_exporter textfile at path.
func WriteMetrics(path string, result *Result) error {
	if err := prometheus.WriteToTextfile(path, NewMetricsRegistry(result)); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
