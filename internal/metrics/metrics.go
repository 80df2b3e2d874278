// Package metrics exposes calibration run statistics as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exponential stage duration buckets: 1ms doubling up to ~32s.
const (
	bucketStart  = 0.001
	bucketFactor = 2
	bucketCount  = 16
)

// CalibrationMetrics records loader outcomes, pipeline stage durations and
// regrid statistics. It satisfies both observation.Recorder and
// calibration.Recorder.
type CalibrationMetrics struct {
	registry *prometheus.Registry

	filesTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	emptyBins     *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// NewCalibrationMetrics creates the metrics and registers them with registry.
func NewCalibrationMetrics(registry *prometheus.Registry) (*CalibrationMetrics, error) {
	m := &CalibrationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("registering calibration metrics: %w", err)
	}
	return m, nil
}

func (m *CalibrationMetrics) initMetrics() {
	m.filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibration_files_total",
			Help: "Total number of observation files seen by the loader",
		},
		[]string{"outcome"}, // loaded or a skip reason
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calibration_stage_duration_seconds",
			Help:    "Time spent in each calibration pipeline stage",
			Buckets: prometheus.ExponentialBuckets(bucketStart, bucketFactor, bucketCount),
		},
		[]string{"stage"},
	)

	m.emptyBins = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calibration_empty_bins",
			Help: "Number of regrid bins that received no samples in the last run",
		},
		[]string{"axis"},
	)

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibration_runs_total",
			Help: "Total number of calibration runs",
		},
		[]string{"status"}, // success, error
	)

	m.lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "calibration_last_run_timestamp_seconds",
			Help: "Unix time of the last completed calibration run",
		},
	)
}

// Describe implements the Collector interface
func (m *CalibrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.filesTotal.Describe(ch)
	m.stageDuration.Describe(ch)
	m.emptyBins.Describe(ch)
	m.runsTotal.Describe(ch)
	m.lastRun.Describe(ch)
}

// Collect implements the Collector interface
func (m *CalibrationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.filesTotal.Collect(ch)
	m.stageDuration.Collect(ch)
	m.emptyBins.Collect(ch)
	m.runsTotal.Collect(ch)
	m.lastRun.Collect(ch)
}

// ObserveFile counts one loader outcome.
func (m *CalibrationMetrics) ObserveFile(outcome string) {
	m.filesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *CalibrationMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveEmptyBins sets the empty bin count of one regrid axis.
func (m *CalibrationMetrics) ObserveEmptyBins(axis string, n int) {
	m.emptyBins.WithLabelValues(axis).Set(float64(n))
}

// RecordRun counts a finished run. A nil err counts as success and stamps the
// last run time.
func (m *CalibrationMetrics) RecordRun(err error, at time.Time) {
	if err != nil {
		m.runsTotal.WithLabelValues("error").Inc()
		return
	}
	m.runsTotal.WithLabelValues("success").Inc()
	m.lastRun.Set(float64(at.Unix()))
}

// WriteToTextfile writes every metric of the registry to path in the text
// exposition format read by the node exporter textfile collector.
func (m *CalibrationMetrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
