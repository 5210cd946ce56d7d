// Package metrics counts what a join run did. A CLI run has no scrape
// endpoint, so the registry is written out in the Prometheus text format for
// the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Side label values
const (
	SideLeft  = "left"
	SideRight = "right"
)

// Metrics holds all Prometheus metrics for a join run.
type Metrics struct {
	RowsRead        *prometheus.CounterVec
	RowsWritten     prometheus.Counter
	UnmatchedRows   *prometheus.CounterVec
	Seeks           prometheus.Counter
	IndexRows       prometheus.Gauge
	IndexKeys       prometheus.Gauge
	DurationSeconds prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	rowsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csvjoin_rows_read_total",
		Help: "Data rows read sequentially per input side, index scan included",
	}, []string{"side"})

	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "csvjoin_rows_written_total",
		Help: "Joined rows written to the output, header excluded",
	})

	unmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csvjoin_unmatched_rows_total",
		Help: "Rows emitted with padding for the missing side, by the side that had no match",
	}, []string{"side"})

	seeks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "csvjoin_seeks_total",
		Help: "Random-access re-reads of indexed rows and reader rewinds",
	})

	indexRows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "csvjoin_index_rows",
		Help: "Rows in the value index of the indexed input",
	})

	indexKeys := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "csvjoin_index_keys",
		Help: "Distinct key tuples in the value index of the indexed input",
	})

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "csvjoin_duration_seconds",
		Help: "Wall time of the join",
	})

	reg.MustRegister(rowsRead, rowsWritten, unmatched, seeks, indexRows, indexKeys, duration)

	return &Metrics{
		RowsRead:        rowsRead,
		RowsWritten:     rowsWritten,
		UnmatchedRows:   unmatched,
		Seeks:           seeks,
		IndexRows:       indexRows,
		IndexKeys:       indexKeys,
		DurationSeconds: duration,
	}
}

// Discard returns metrics registered nowhere, for callers that do not export them.
func Discard() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// WriteTextfile writes everything gathered from g to path, atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
