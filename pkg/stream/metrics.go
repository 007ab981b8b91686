package stream

// Metrics receives delivery counters from the publisher and dispatcher.
// The prometheus implementation lives in internal/obs; NopMetrics is the
// default.
type Metrics interface {
	Published(topic string)
	Consumed(topic, group string)
	Retried(topic, group string)
	DeadLettered(topic, group string)
	Lag(topic, group string, partition int, lag int64)
}

type NopMetrics struct{}

func (NopMetrics) Published(string) {}

func (NopMetrics) Consumed(string, string) {}

func (NopMetrics) Retried(string, string) {}

func (NopMetrics) DeadLettered(string, string) {}

func (NopMetrics) Lag(string, string, int, int64) {}
