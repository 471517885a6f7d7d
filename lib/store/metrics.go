package store

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// observeTxn records the duration and outcome of a transaction
func observeTxn(mode string, start time.Time, err error) {
	metrics.GetOrCreateHistogram(`kvmap_store_txn_duration_seconds{mode="` + mode + `"}`).UpdateDuration(start)
	if err != nil {
		metrics.GetOrCreateCounter(`kvmap_store_txn_errors_total{mode="` + mode + `",code="` + CodeOf(err).String() + `"}`).Inc()
	}
}
