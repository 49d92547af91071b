package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doubtsolver"

// Collector holds the bot's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Doubts         *prometheus.CounterVec
	AnswerDuration *prometheus.HistogramVec
	Commands       *prometheus.CounterVec
	CooldownSize   prometheus.Gauge
}

// NewCollector creates and registers the metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		Doubts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doubts_total",
			Help:      "Doubts dispatched, by outcome.",
		}, []string{"outcome"}),
		AnswerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "Latency of answer service calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Bot commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		CooldownSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cooldown_entries",
			Help:      "Requesters currently tracked by the cooldown table.",
		}),
	}
	registry.MustRegister(
		c.Doubts,
		c.AnswerDuration,
		c.Commands,
		c.CooldownSize,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveDoubt counts one dispatched doubt. Nil collectors are ignored.
func (c *Collector) ObserveDoubt(outcome string) {
	if c == nil {
		return
	}
	c.Doubts.WithLabelValues(outcome).Inc()
}

// ObserveAnswer records the duration of one answer service call.
func (c *Collector) ObserveAnswer(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.AnswerDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveCommand counts one handled command.
func (c *Collector) ObserveCommand(command, outcome string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(command, outcome).Inc()
}

// SetCooldownSize publishes the size of the cooldown table.
func (c *Collector) SetCooldownSize(n int) {
	if c == nil {
		return
	}
	c.CooldownSize.Set(float64(n))
}
