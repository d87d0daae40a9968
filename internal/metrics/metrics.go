package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsHandled counts inbound chat events by owning flow and outcome.
	EventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "materialbot_events_handled_total",
			Help: "Inbound chat events handled by the dialogue engine",
		},
		[]string{"flow", "outcome"},
	)

	// LedgerWrites counts ledger mutations by operation and result.
	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "materialbot_ledger_writes_total",
			Help: "Ledger append/void/overwrite operations",
		},
		[]string{"op", "result"},
	)

	// InventoryCache counts materialized inventory lookups by result.
	InventoryCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "materialbot_inventory_cache_total",
			Help: "Materialized inventory cache hits and misses",
		},
		[]string{"result"},
	)

	// OutboundFailures counts messages the gateway refused.
	OutboundFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "materialbot_outbound_failures_total",
			Help: "Outbound WhatsApp messages that failed to send",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsHandled, LedgerWrites, InventoryCache, OutboundFailures)
}

// Handler exposes the default registry to gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Result maps an error to a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
