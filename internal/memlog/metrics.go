package memlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WritesTotal counts log writes by operation (append, clear) and
	// result (ok, error).
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "memlog",
			Name:      "writes_total",
			Help:      "Log write operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// RecordsRead counts records returned by full log reads.
	RecordsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "memlog",
			Name:      "records_read_total",
			Help:      "Records decoded from user logs",
		},
	)

	// CorruptLines counts stored lines skipped because they did not parse.
	CorruptLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "memlog",
			Name:      "corrupt_lines_total",
			Help:      "Stored lines skipped because they were not valid records",
		},
	)
)
