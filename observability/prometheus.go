package observability

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFactory is a MetricFactory backed by client_golang. Dotted metric
// names are flattened to Prometheus form: "escrow.payment.created" becomes
// "<namespace>_escrow_payment_created_total".
type PrometheusFactory struct {
	namespace  string
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory returns a factory registering its collectors on reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusFactory(namespace string, reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		namespace:  namespace,
		registerer: reg,
		buckets:    prometheus.ExponentialBuckets(1, 10, 19),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory. Repeated calls with the same name return
// the same collector.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      metricName(name) + "_total",
		Help:      "Escrow counter " + name + ".",
	})
	f.counters[name] = register(f.registerer, c).(prometheus.Counter)
	return f.counters[name]
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Escrow histogram " + name + ".",
		Buckets:   f.buckets,
	})
	f.histograms[name] = register(f.registerer, h).(prometheus.Histogram)
	return f.histograms[name]
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
