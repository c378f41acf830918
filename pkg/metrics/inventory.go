package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics tracks stock movements and ledger anomalies.
type InventoryMetrics struct {
	movements *prometheus.CounterVec
	clamps    prometheus.Counter
	lowStock  *prometheus.GaugeVec
	expiring  *prometheus.GaugeVec
	relay     *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_total",
		Help: "Committed lot movements by type.",
	}, []string{"movement_type"})
	clamps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_ledger_clamps_total",
		Help: "Deductions clamped at zero by the lot ledger.",
	})
	lowStock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inventory_low_stock_products",
		Help: "Products under their minimum stock, per warehouse.",
	}, []string{"warehouse_id"})
	expiring := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inventory_expiring_lots",
		Help: "Active lots expiring inside the warning window, per warehouse.",
	}, []string{"warehouse_id"})
	relay := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_relay_events_total",
		Help: "Outbox events handled by the audit relay by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(movements, clamps, lowStock, expiring, relay)
	return &InventoryMetrics{
		movements: movements,
		clamps:    clamps,
		lowStock:  lowStock,
		expiring:  expiring,
		relay:     relay,
	}
}

func (m *InventoryMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

func (m *InventoryMetrics) IncClamp() {
	if m == nil || m.clamps == nil {
		return
	}
	m.clamps.Inc()
}

// SetLowStock replaces the low-stock gauge for every reported warehouse.
func (m *InventoryMetrics) SetLowStock(counts map[string]int) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Reset()
	for warehouse, count := range counts {
		m.lowStock.WithLabelValues(normalizeLabel(warehouse)).Set(float64(count))
	}
}

// SetExpiring replaces the expiring-lots gauge for every reported warehouse.
func (m *InventoryMetrics) SetExpiring(counts map[string]int) {
	if m == nil || m.expiring == nil {
		return
	}
	m.expiring.Reset()
	for warehouse, count := range counts {
		m.expiring.WithLabelValues(normalizeLabel(warehouse)).Set(float64(count))
	}
}

// IncRelay counts relay outcomes by label.
func (m *InventoryMetrics) IncRelay(outcome string) {
	if m == nil || m.relay == nil {
		return
	}
	m.relay.WithLabelValues(normalizeLabel(outcome)).Inc()
}
