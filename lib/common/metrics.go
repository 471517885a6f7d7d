package common

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// WriteMetrics writes all counters and histograms of the module in Prometheus text format
func WriteMetrics(w io.Writer, processMetrics bool) {
	metrics.WritePrometheus(w, processMetrics)
}
