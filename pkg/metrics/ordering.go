package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderingMetrics tracks the cycle lifecycle and order intake.
type OrderingMetrics struct {
	transitions  *prometheus.CounterVec
	repriced     *prometheus.CounterVec
	cancelled    prometheus.Counter
	discountRate prometheus.Gauge
	placed       prometheus.Counter
	rejected     *prometheus.CounterVec
}

// NewOrderingMetrics registers the ordering metrics on the provided registerer.
func NewOrderingMetrics(reg prometheus.Registerer) *OrderingMetrics {
	if reg == nil {
		return &OrderingMetrics{}
	}
	m := &OrderingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_cycle_transitions_total",
			Help: "Ordering cycle state transitions.",
		}, []string{"transition"}),
		repriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_orders_repriced_total",
			Help: "Pending orders whose discount was recomputed.",
		}, []string{"operation"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordering_orders_cancelled_total",
			Help: "Pending orders cancelled by cycle confirmation.",
		}),
		discountRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ordering_last_cycle_discount_rate",
			Help: "Discount percentage fixed on the most recently closed cycle.",
		}),
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordering_orders_placed_total",
			Help: "Orders accepted into a cycle.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_orders_rejected_total",
			Help: "Order placements rejected, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.transitions, m.repriced, m.cancelled, m.discountRate, m.placed, m.rejected)
	return m
}

// IncTransition counts one lifecycle transition (opened, closed, confirmed).
func (m *OrderingMetrics) IncTransition(transition string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition)).Inc()
}

func (m *OrderingMetrics) AddRepriced(operation string, n int) {
	if m == nil || m.repriced == nil || n <= 0 {
		return
	}
	m.repriced.WithLabelValues(normalizeLabel(operation)).Add(float64(n))
}

func (m *OrderingMetrics) AddCancelled(n int) {
	if m == nil || m.cancelled == nil || n <= 0 {
		return
	}
	m.cancelled.Add(float64(n))
}

func (m *OrderingMetrics) SetDiscountRate(rate float64) {
	if m == nil || m.discountRate == nil {
		return
	}
	m.discountRate.Set(rate)
}

func (m *OrderingMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

func (m *OrderingMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
