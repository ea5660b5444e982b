package monitoring

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/dmcache/mem/cache/directmapped"
)

// A CacheStatsSource reports the statistics of caches by name. Monitor is a
// CacheStatsSource serving the last snapshot.
type CacheStatsSource interface {
	CacheStats() map[string]directmapped.Stats
}

// CacheCollector exports the statistics of caches as Prometheus metrics.
// Values are read from the source on every scrape.
type CacheCollector struct {
	source CacheStatsSource

	requests    *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	refills     *prometheus.Desc
	stateCycles *prometheus.Desc
	hitRate     *prometheus.Desc
}

// NewCacheCollector creates a collector reading from source.
func NewCacheCollector(source CacheStatsSource) *CacheCollector {
	return &CacheCollector{
		source: source,
		requests: prometheus.NewDesc(
			"dmcache_requests_total",
			"Front-end requests acknowledged by the cache.",
			[]string{"cache", "kind"}, nil),
		hits: prometheus.NewDesc(
			"dmcache_hits_total",
			"Requests that hit on their first tag test.",
			[]string{"cache"}, nil),
		misses: prometheus.NewDesc(
			"dmcache_misses_total",
			"Requests that missed on their first tag test.",
			[]string{"cache"}, nil),
		evictions: prometheus.NewDesc(
			"dmcache_evictions_total",
			"Dirty lines written back to the back-end.",
			[]string{"cache"}, nil),
		refills: prometheus.NewDesc(
			"dmcache_refills_total",
			"Lines read from the back-end.",
			[]string{"cache"}, nil),
		stateCycles: prometheus.NewDesc(
			"dmcache_state_cycles_total",
			"Cycles the controller spent in each state.",
			[]string{"cache", "state"}, nil),
		hitRate: prometheus.NewDesc(
			"dmcache_hit_rate",
			"Fraction of requests that hit.",
			[]string{"cache"}, nil),
	}
}

// Describe sends the metric descriptors.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.refills
	ch <- c.stateCycles
	ch <- c.hitRate
}

// Collect sends the current value of every metric.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.CacheStats()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		s := stats[name]

		counter := func(d *prometheus.Desc, v uint64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(
				d, prometheus.CounterValue, float64(v),
				append([]string{name}, labels...)...)
		}

		counter(c.requests, s.Reads, "read")
		counter(c.requests, s.Writes, "write")
		counter(c.hits, s.Hits)
		counter(c.misses, s.Misses)
		counter(c.evictions, s.Evictions)
		counter(c.refills, s.Refills)

		for _, state := range directmapped.AllStates() {
			counter(c.stateCycles, s.StateCycles[state], state.String())
		}

		ch <- prometheus.MustNewConstMetric(
			c.hitRate, prometheus.GaugeValue, s.HitRate(), name)
	}
}
