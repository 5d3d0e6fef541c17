package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/notify"
)

const namespace = "ledger_notify"

// Collector records broadcast round reports. It implements notify.Observer and is safe
// to share between engines.
type Collector struct {
	registry *prometheus.Registry

	rounds        prometheus.Counter
	units         prometheus.Histogram
	duration      prometheus.Histogram
	deliveries    *prometheus.CounterVec
	failures      prometheus.Counter
	fetchErrors   prometheus.Counter
	planErrors    prometheus.Counter
	unsubscribed  prometheus.Counter
	changedPerRun prometheus.Histogram
}

// New creates a collector with its own registry. Go runtime and process collectors
// are included.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Broadcast rounds completed.",
		}),
		units: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_units",
			Help:      "Units of work coalesced into one round.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from round start until every delivery was attempted.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		changedPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_changed_objects",
			Help:      "Objects in a round's merged change set.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Successful deliveries by notification kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Deliveries whose sink returned an error or panicked.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Object values that could not be read for a round.",
		}),
		planErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_errors_total",
			Help:      "Round plans (object or market) skipped after a panic.",
		}),
		unsubscribed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_unsubscribes_total",
			Help:      "Subscriptions removed after a failed delivery.",
		}),
	}

	reg.MustRegister(
		c.rounds, c.units, c.duration, c.changedPerRun,
		c.deliveries, c.failures, c.fetchErrors, c.planErrors, c.unsubscribed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRound implements notify.Observer.
func (c *Collector) ObserveRound(r notify.RoundReport) {
	c.rounds.Inc()
	c.units.Observe(float64(r.Units))
	c.changedPerRun.Observe(float64(r.Changed))
	c.duration.Observe(r.Duration.Seconds())
	c.deliveries.WithLabelValues(string(model.KindObject)).Add(float64(r.ObjectDeliveries))
	c.deliveries.WithLabelValues(string(model.KindMarket)).Add(float64(r.MarketDeliveries))
	c.failures.Add(float64(r.Failures))
	c.fetchErrors.Add(float64(r.FetchErrors))
	c.planErrors.Add(float64(r.PlanErrors))
	c.unsubscribed.Add(float64(r.Unsubscribed))
}

// Gauge registers a gauge whose value is read from fn at scrape time.
func (c *Collector) Gauge(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Counter registers a counter whose value is read from fn at scrape time.
func (c *Collector) Counter(name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
