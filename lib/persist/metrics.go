package persist

import (
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

const (
	opWrite          = "write"
	opWriteAll       = "write_all"
	opRead           = "read"
	opReadAll        = "read_all"
	opReadCollection = "read_collection"
	opKeys           = "keys"
	opRemove         = "remove"
	opRemoveAll      = "remove_all"
	opRemoveKeys     = "remove_keys"

	idiomSync      = "sync"
	idiomAsync     = "async"
	idiomFuture    = "future"
	idiomOperation = "operation"
)

// observe counts a finished call per operation and idiom
func observe(op, idiom string, err error) {
	metrics.GetOrCreateCounter(`kvmap_persist_calls_total{op="` + op + `",idiom="` + idiom + `"}`).Inc()
	if err != nil {
		code := store.CodeOf(err)
		metrics.GetOrCreateCounter(`kvmap_persist_errors_total{op="` + op + `",idiom="` + idiom + `",code="` + code.String() + `"}`).Inc()
		log.Debugf("%s (%s) failed: %v", op, idiom, err)
	}
}
