// Package metrics счётчики Prometheus для покупок, решений администратора и бесплатных выдач.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "subscription_bot"

// Metrics набор счётчиков бота. Нулевой указатель допустим: запись в него ничего не делает.
type Metrics struct {
	receiptsSubmitted prometheus.Counter
	decisionsTotal    *prometheus.CounterVec
	freeClaimsTotal   *prometheus.CounterVec
	notifyFailed      *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		receiptsSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purchase",
				Name:      "receipts_submitted_total",
				Help:      "Total receipts added to the moderation queue",
			},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "moderation",
				Name:      "decisions_total",
				Help:      "Total moderation decisions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		freeClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "free",
				Name:      "claims_total",
				Help:      "Total free grant requests by result",
			},
			[]string{"result"},
		),
		notifyFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "failures_total",
				Help:      "Total notifications that could not be delivered by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.receiptsSubmitted,
		m.decisionsTotal,
		m.freeClaimsTotal,
		m.notifyFailed,
	)
	return m
}

// ReceiptSubmitted учитывает чек, поставленный в очередь.
func (m *Metrics) ReceiptSubmitted() {
	if m == nil {
		return
	}
	m.receiptsSubmitted.Inc()
}

// Decision учитывает решение администратора.
func (m *Metrics) Decision(action, outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(action, outcome).Inc()
}

// FreeClaim учитывает запрос бесплатной выдачи: granted, rate_limited или error.
func (m *Metrics) FreeClaim(result string) {
	if m == nil {
		return
	}
	m.freeClaimsTotal.WithLabelValues(result).Inc()
}

// NotifyFailed учитывает недоставленное уведомление.
func (m *Metrics) NotifyFailed(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.notifyFailed.WithLabelValues(kind).Inc()
}
