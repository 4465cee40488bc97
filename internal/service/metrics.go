package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
)

const metricsNamespace = "feishu_relay"

// Metrics holds the relay's Prometheus collectors on a private registry
type Metrics struct {
	registry   *prometheus.Registry
	inbound    *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	turns      *prometheus.CounterVec
	batchSize  *prometheus.HistogramVec
	outbound   *prometheus.CounterVec
	retries    *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, append([]string{"account"}, labels...))
	}

	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		inbound:    counter("inbound_events_total", "Platform events received."),
		duplicates: counter("duplicate_events_total", "Events dropped as redeliveries."),
		dropped:    counter("dropped_events_total", "Events dropped before dispatch.", "reason"),
		turns:      counter("turns_total", "Turns handed to the dispatcher."),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "turn_batch_size",
			Help:      "Events coalesced into one turn.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}, []string{"account"}),
		outbound: counter("outbound_messages_total", "Messages and reactions delivered.", "kind"),
		retries:  counter("send_retries_total", "Send attempts that were retried."),
		errors:   counter("errors_total", "Delivery and dispatch errors."),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inbound, m.duplicates, m.dropped, m.turns, m.batchSize, m.outbound, m.retries, m.errors,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ForAccount returns an observer that labels every event with accountID
func (m *Metrics) ForAccount(accountID string) usecase.Observer {
	return &accountObserver{m: m, account: accountID}
}

type accountObserver struct {
	m       *Metrics
	account string
}

func (o *accountObserver) Inbound() { o.m.inbound.WithLabelValues(o.account).Inc() }

func (o *accountObserver) Duplicate() { o.m.duplicates.WithLabelValues(o.account).Inc() }

func (o *accountObserver) Dropped(reason string) {
	o.m.dropped.WithLabelValues(o.account, reason).Inc()
}

func (o *accountObserver) Turn(batchSize int) {
	o.m.turns.WithLabelValues(o.account).Inc()
	o.m.batchSize.WithLabelValues(o.account).Observe(float64(batchSize))
}

func (o *accountObserver) Outbound(kind string) {
	o.m.outbound.WithLabelValues(o.account, kind).Inc()
}

func (o *accountObserver) SendRetry() { o.m.retries.WithLabelValues(o.account).Inc() }

func (o *accountObserver) Error() { o.m.errors.WithLabelValues(o.account).Inc() }
