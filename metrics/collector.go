package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func desc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// statsCollector turns component snapshots into metrics at scrape time, so
// the hot paths carry no instrumentation of their own.
type statsCollector struct {
	src Sources

	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cacheEvictions *prometheus.Desc
	cacheEntries   *prometheus.Desc

	breakerState     *prometheus.Desc
	breakerFailures  *prometheus.Desc
	breakerSuccesses *prometheus.Desc

	inFlight  *prometheus.Desc
	producers *prometheus.Desc

	ledgerCommitted *prometheus.Desc
	ledgerRejected  *prometheus.Desc
	ledgerGuilds    *prometheus.Desc
	ledgerAccounts  *prometheus.Desc
}

func newStatsCollector(src Sources) *statsCollector {
	return &statsCollector{
		src: src,

		cacheHits:      desc("cache", "hits_total", "Cache lookups that found a live entry."),
		cacheMisses:    desc("cache", "misses_total", "Cache lookups that found nothing or an expired entry."),
		cacheEvictions: desc("cache", "evictions_total", "Entries evicted to make room."),
		cacheEntries:   desc("cache", "entries", "Entries currently stored."),

		breakerState:     desc("breaker", "state", "Breaker state: 0 closed, 1 open, 2 half-open.", "breaker"),
		breakerFailures:  desc("breaker", "consecutive_failures", "Consecutive failures counted by the breaker.", "breaker"),
		breakerSuccesses: desc("breaker", "successes_total", "Successful calls through the breaker.", "breaker"),

		inFlight:  desc("coalesce", "in_flight", "Keys with a producer currently running."),
		producers: desc("coalesce", "producers_total", "Producers started by the coalescer."),

		ledgerCommitted: desc("ledger", "committed_total", "Ledger operations committed."),
		ledgerRejected:  desc("ledger", "rejected_total", "Ledger operations rejected."),
		ledgerGuilds:    desc("ledger", "guilds", "Guilds known to the ledger."),
		ledgerAccounts:  desc("ledger", "accounts", "Accounts known to the ledger."),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cacheHits, c.cacheMisses, c.cacheEvictions, c.cacheEntries,
		c.breakerState, c.breakerFailures, c.breakerSuccesses,
		c.inFlight, c.producers,
		c.ledgerCommitted, c.ledgerRejected, c.ledgerGuilds, c.ledgerAccounts,
	} {
		ch <- d
	}
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.src.Cache != nil {
		s := c.src.Cache()
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.Hits))
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.Misses))
		ch <- prometheus.MustNewConstMetric(c.cacheEvictions, prometheus.CounterValue, float64(s.Evictions))
		ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(s.Size))
	}
	if c.src.Breakers != nil {
		for _, b := range c.src.Breakers() {
			ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, float64(b.State), b.Name)
			ch <- prometheus.MustNewConstMetric(c.breakerFailures, prometheus.GaugeValue, float64(b.Failures), b.Name)
			ch <- prometheus.MustNewConstMetric(c.breakerSuccesses, prometheus.CounterValue, float64(b.Successes), b.Name)
		}
	}
	if c.src.InFlight != nil {
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(c.src.InFlight()))
	}
	if c.src.Producers != nil {
		ch <- prometheus.MustNewConstMetric(c.producers, prometheus.CounterValue, float64(c.src.Producers()))
	}
	if c.src.Ledger != nil {
		s := c.src.Ledger()
		ch <- prometheus.MustNewConstMetric(c.ledgerCommitted, prometheus.CounterValue, float64(s.Committed))
		ch <- prometheus.MustNewConstMetric(c.ledgerRejected, prometheus.CounterValue, float64(s.Rejected))
		ch <- prometheus.MustNewConstMetric(c.ledgerGuilds, prometheus.GaugeValue, float64(s.Guilds))
		ch <- prometheus.MustNewConstMetric(c.ledgerAccounts, prometheus.GaugeValue, float64(s.Accounts))
	}
}
