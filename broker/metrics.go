package broker

import "github.com/prometheus/client_golang/prometheus"

// Collector exports a broker's Stats as Prometheus metrics.
type Collector struct {
	broker *Broker

	frames   *prometheus.Desc
	topics   *prometheus.Desc
	messages *prometheus.Desc
	resizes  *prometheus.Desc
	relayed  *prometheus.Desc
	dropped  *prometheus.Desc
	unknown  *prometheus.Desc
	rejected *prometheus.Desc
}

// NewCollector creates a collector reading from b. Metric names are prefixed
// with namespace, "bricbus" when empty.
func NewCollector(b *Broker, namespace string) *Collector {
	if namespace == "" {
		namespace = "bricbus"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "broker", name), help, nil, nil)
	}
	return &Collector{
		broker:   b,
		frames:   desc("frames", "Number of managed frames."),
		topics:   desc("topics", "Number of topics with at least one subscribed frame."),
		messages: desc("messages_total", "Message channel publishes received."),
		resizes:  desc("resizes_total", "View channel resize requests received."),
		relayed:  desc("relayed_total", "Envelopes relayed to subscribed frames."),
		dropped:  desc("dropped_total", "Relays that failed and envelopes that could not be parsed."),
		unknown:  desc("unknown_total", "Envelopes with an unknown channel or method."),
		rejected: desc("rejected_total", "Subscription changes from unmanaged windows."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frames
	ch <- c.topics
	ch <- c.messages
	ch <- c.resizes
	ch <- c.relayed
	ch <- c.dropped
	ch <- c.unknown
	ch <- c.rejected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.broker.Stats()
	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.GaugeValue, float64(s.Frames))
	ch <- prometheus.MustNewConstMetric(c.topics, prometheus.GaugeValue, float64(s.Topics))
	ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue, float64(s.Messages))
	ch <- prometheus.MustNewConstMetric(c.resizes, prometheus.CounterValue, float64(s.Resizes))
	ch <- prometheus.MustNewConstMetric(c.relayed, prometheus.CounterValue, float64(s.Relayed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.unknown, prometheus.CounterValue, float64(s.Unknown))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.Rejected))
}
