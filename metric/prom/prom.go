// Package prom exports extractor metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	eng, _ := extractor.New(in, out,
//	    extractor.WithMetricsCollector(prom.NewCollector(reg)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/extractor"
)

// Namespace prefixes every metric name.
const Namespace = "extractor"

// Collector implements extractor.MetricsCollector on Prometheus metrics.
type Collector struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	rows          *prometheus.CounterVec
	chunkBytes    prometheus.Counter
	chunkDuration prometheus.Histogram
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	buildRows     prometheus.Gauge
	candidates    prometheus.Histogram
	lookups       prometheus.Histogram
}

var _ extractor.MetricsCollector = (*Collector)(nil)

// NewCollector creates and registers all metrics with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Total filter runs by query path and status",
		}, []string{"mode", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful filter runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"mode"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_total",
			Help:      "Rows seen by filter runs by outcome",
		}, []string{"outcome"}),
		chunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chunk_bytes_total",
			Help:      "Input bytes scanned in chunks",
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Time to filter one chunk",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "index_builds_total",
			Help:      "Total index builds by status",
		}, []string{"status"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Time to build and persist an index",
			Buckets:   prometheus.DefBuckets,
		}),
		buildRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "index_rows",
			Help:      "Rows covered by the most recently built index",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "index_candidates",
			Help:      "Candidate rows returned per index lookup",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
		}),
		lookups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "index_lookup_duration_seconds",
			Help:      "Time to resolve index constraints",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	reg.MustRegister(
		c.runs, c.runDuration, c.rows,
		c.chunkBytes, c.chunkDuration,
		c.builds, c.buildDuration, c.buildRows,
		c.candidates, c.lookups,
	)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordProcess implements extractor.MetricsCollector.
func (c *Collector) RecordProcess(mode string, st *extractor.Stats, err error) {
	c.runs.WithLabelValues(mode, status(err)).Inc()
	if err != nil || st == nil {
		return
	}
	c.runDuration.WithLabelValues(mode).Observe(st.Elapsed.Seconds())
	c.rows.WithLabelValues("matched").Add(float64(st.RowsMatched))
	c.rows.WithLabelValues("rejected").Add(float64(st.RowsProcessed - st.RowsMatched - st.RowsMalformed))
	c.rows.WithLabelValues("malformed").Add(float64(st.RowsMalformed))
}

// RecordChunk implements extractor.MetricsCollector.
func (c *Collector) RecordChunk(bytes, _ int64, d time.Duration) {
	c.chunkBytes.Add(float64(bytes))
	c.chunkDuration.Observe(d.Seconds())
}

// RecordIndexBuild implements extractor.MetricsCollector.
func (c *Collector) RecordIndexBuild(rows int64, d time.Duration, err error) {
	c.builds.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	c.buildDuration.Observe(d.Seconds())
	c.buildRows.Set(float64(rows))
}

// RecordIndexLookup implements extractor.MetricsCollector.
func (c *Collector) RecordIndexLookup(candidates int, d time.Duration) {
	c.candidates.Observe(float64(candidates))
	c.lookups.Observe(d.Seconds())
}
