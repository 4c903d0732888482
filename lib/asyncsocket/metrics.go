package asyncsocket

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

// registry holds every open AsyncSocket, keyed by its id. It backs the gauges below.
var registry = xsync.NewMapOf[uint64, *AsyncSocket]()

func init() {
	metrics.NewGauge(`netsock_sockets_open`, func() float64 {
		return float64(registry.Size())
	})
	metrics.NewGauge(`netsock_transactions_pending`, func() float64 {
		pending := 0
		registry.Range(func(_ uint64, a *AsyncSocket) bool {
			pending += a.Pending()
			return true
		})
		return float64(pending)
	})
}

// observe records the outcome of one executed transaction
func observe(tx transaction, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`netsock_transactions_total{kind=%q,result=%q}`, tx.kind(), result)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`netsock_transaction_duration_seconds{kind=%q}`, tx.kind())).UpdateDuration(start)

	if err == nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`netsock_bytes_total{kind=%q}`, tx.kind())).Add(tx.size())
	}
}

// observeAbandoned records transactions dropped without being executed
func observeAbandoned(txs []transaction) {
	for _, tx := range txs {
		metrics.GetOrCreateCounter(fmt.Sprintf(`netsock_transactions_abandoned_total{kind=%q}`, tx.kind())).Inc()
	}
}
