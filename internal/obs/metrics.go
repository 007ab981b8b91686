package obs

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the delivery counters of the event core and the aggregate
// outcome counter of the composite API.
type Metrics struct {
	published    *prometheus.CounterVec
	consumed     *prometheus.CounterVec
	retried      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	lag          *prometheus.GaugeVec
	aggregates   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, serviceName string) *Metrics {
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "events_published_total",
			Help:        "Events acknowledged by the broker",
			ConstLabels: constLabels,
		}, []string{"topic"}),
		consumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "events_consumed_total",
			Help:        "Events acknowledged by handlers",
			ConstLabels: constLabels,
		}, []string{"topic", "group"}),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "event_retries_total",
			Help:        "Redelivery attempts scheduled by the retry policy",
			ConstLabels: constLabels,
		}, []string{"topic", "group"}),
		deadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "events_dead_lettered_total",
			Help:        "Records parked in the dead-letter sink",
			ConstLabels: constLabels,
		}, []string{"topic", "group"}),
		lag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "consumer_lag_records",
			Help:        "Head offset minus committed offset per partition",
			ConstLabels: constLabels,
		}, []string{"topic", "group", "partition"}),
		aggregates: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "aggregate_requests_total",
			Help:        "Composite aggregations by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Published(topic string) {
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) Consumed(topic, group string) {
	m.consumed.WithLabelValues(topic, group).Inc()
}

func (m *Metrics) Retried(topic, group string) {
	m.retried.WithLabelValues(topic, group).Inc()
}

func (m *Metrics) DeadLettered(topic, group string) {
	m.deadLettered.WithLabelValues(topic, group).Inc()
}

func (m *Metrics) Lag(topic, group string, partition int, lag int64) {
	m.lag.WithLabelValues(topic, group, strconv.Itoa(partition)).Set(float64(lag))
}

func (m *Metrics) AggregateObserved(outcome string) {
	m.aggregates.WithLabelValues(outcome).Inc()
}
