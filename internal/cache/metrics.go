package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// settings holds construction options shared by all Cache instantiations.
type settings struct {
	registerer prometheus.Registerer
	name       string
}

// Option configures a Cache at construction time.
type Option func(*settings)

// WithMetrics mirrors the cache's request counters into Prometheus.
// name partitions the metrics when a process runs several caches.
// promauto.With(reg) is used so tests can pass a fresh registry and stay
// hermetic.
func WithMetrics(reg prometheus.Registerer, name string) Option {
	return func(s *settings) {
		s.registerer = reg
		s.name = name
	}
}

// cacheMetrics holds the Prometheus mirrors of the cache counters.
type cacheMetrics struct {
	// putCalls counts Put requests.
	putCalls prometheus.Counter
	// getCalls counts Get requests.
	getCalls prometheus.Counter
	// builds counts completed recomputations (synchronous and background).
	builds prometheus.Counter
}

// newCacheMetrics registers the cache metrics against reg.
func newCacheMetrics(reg prometheus.Registerer, name string) *cacheMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"cache": name}

	return &cacheMetrics{
		putCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "catena",
			Subsystem:   "cache",
			Name:        "put_calls_total",
			Help:        "Total number of Put requests.",
			ConstLabels: labels,
		}),
		getCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "catena",
			Subsystem:   "cache",
			Name:        "get_calls_total",
			Help:        "Total number of Get requests.",
			ConstLabels: labels,
		}),
		builds: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "catena",
			Subsystem:   "cache",
			Name:        "builds_total",
			Help:        "Total number of completed value recomputations.",
			ConstLabels: labels,
		}),
	}
}
