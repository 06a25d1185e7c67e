package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the service's Prometheus counters. A nil *Metrics is a no-op.
type Metrics struct {
	callbacks    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	failureDrops prometheus.Counter
	tokenCache   *prometheus.CounterVec
	checkouts    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hutko_callbacks_total",
			Help: "Processed payment callbacks by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hutko_order_transitions_total",
			Help: "Order status transitions applied from callbacks.",
		}, []string{"status"}),
		failureDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hutko_failure_records_dropped_total",
			Help: "Callback failure records dropped because the queue was full.",
		}),
		tokenCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hutko_checkout_token_cache_total",
			Help: "Checkout token cache lookups by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hutko_checkouts_total",
			Help: "Checkout initiations by integration type and result.",
		}, []string{"integration", "result"}),
	}
	reg.MustRegister(m.callbacks, m.transitions, m.failureDrops, m.tokenCache, m.checkouts)
	return m
}

func (m *Metrics) ObserveCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFailureDrop() {
	if m == nil {
		return
	}
	m.failureDrops.Inc()
}

func (m *Metrics) ObserveTokenCache(result string) {
	if m == nil {
		return
	}
	m.tokenCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCheckout(integration, result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(integration, result).Inc()
}
