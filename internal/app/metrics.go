/**
 * @description
 * Prometheus metrics for the agent's hot paths, registered with the default
 * registry and exposed by the API server's /metrics endpoint.
 *
 * @dependencies
 * - github.com/prometheus/client_golang: Metrics library.
 */

package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signalsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debtors_agent_signals_consumed_total",
		Help: "Inbound signals processed, by message type and result.",
	}, []string{"type", "result"})

	maintenanceSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debtors_agent_maintenance_signals_total",
		Help: "Corrective signals emitted by the maintenance scanner, by kind.",
	}, []string{"kind"})

	outboxFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debtors_agent_outbox_flushed_total",
		Help: "Outbox rows published and deleted after broker confirmation.",
	})

	scannedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debtors_agent_scanned_rows_total",
		Help: "Rows examined by the periodic sweeps, by table.",
	}, []string{"table"})
)
