package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stabletrade/internal/txflow"
)

type metricsRegistry struct {
	registry        *prometheus.Registry
	transactions    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	rejectedRuns    *prometheus.CounterVec
	historyRecords  prometheus.Gauge
	pendingOrders   prometheus.Gauge
	productListings prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	txs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stabletrade_transactions_total",
		Help: "Terminal transaction outcomes by action",
	}, []string{"action", "status", "kind"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stabletrade_executor_transitions_total",
		Help: "Executor state transitions by action and target state",
	}, []string{"action", "to"})

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stabletrade_executor_rejected_total",
		Help: "Execute calls refused because a run was in flight or superseded",
	}, []string{"action", "reason"})

	history := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stabletrade_history_records",
		Help: "Number of records in the transaction history",
	})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stabletrade_pending_orders",
		Help: "Number of pending delayed redemptions",
	})

	products := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stabletrade_product_listings",
		Help: "Number of product listings",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(txs, transitions, rejected, history, pending, products)

	return &metricsRegistry{
		registry:        r,
		transactions:    txs,
		transitions:     transitions,
		rejectedRuns:    rejected,
		historyRecords:  history,
		pendingOrders:   pending,
		productListings: products,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incTransaction(action, status, kind string) {
	m.transactions.WithLabelValues(action, status, kind).Inc()
}

func (m *metricsRegistry) incRejected(action, reason string) {
	m.rejectedRuns.WithLabelValues(action, reason).Inc()
}

// observer counts executor transitions for one action.
func (m *metricsRegistry) observer(action string) txflow.Observer {
	return txflow.ObserverFunc(func(_, to txflow.State) {
		m.transitions.WithLabelValues(action, string(to)).Inc()
	})
}

func (m *metricsRegistry) setHistory(n int)  { m.historyRecords.Set(float64(n)) }
func (m *metricsRegistry) setPending(n int)  { m.pendingOrders.Set(float64(n)) }
func (m *metricsRegistry) setProducts(n int) { m.productListings.Set(float64(n)) }
