package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stablenet/core/events"
	"stablenet/observability/metrics"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablenet",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of ledger transfers segmented by asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(eventRegistry.transfers)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied asset ticker.
func (m *eventMetrics) RecordTransfer(asset string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// MetricsEmitter records Prometheus metrics for every emitted event and then
// forwards it to the wrapped emitter.
type MetricsEmitter struct {
	next events.Emitter
}

// NewMetricsEmitter wraps an emitter; a nil next discards forwarded events.
func NewMetricsEmitter(next events.Emitter) *MetricsEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MetricsEmitter{next: next}
}

// Emit implements events.Emitter.
func (m *MetricsEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	switch typed := evt.(type) {
	case events.TokenTransfer:
		Events().RecordTransfer("XUSD")
	case events.VaultMint:
		metrics.Vault().ObserveMint(typed.Collateral, typed.NetAmount, typed.FeeAmount)
	case events.VaultRedeem:
		metrics.Vault().ObserveRedeem(typed.Collateral, typed.NetBurn, typed.FeeAmount)
	case events.VaultAllocate:
		metrics.Vault().ObserveAllocation(typed.Collateral, typed.Venue)
	case events.VaultRebase:
		metrics.Vault().ObserveRebase(typed.Amount)
	}
	m.next.Emit(evt)
}
