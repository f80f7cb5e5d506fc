// Package collector exports the digests of a registry as Prometheus summaries.
package collector

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/histdb/tdigest"
	"github.com/histdb/tdigest/registry"
)

// DefaultQuantiles are reported when Opts.Quantiles is empty.
var DefaultQuantiles = []float64{0.5, 0.9, 0.99}

// Opts names the exported metrics.
type Opts struct {
	Namespace string
	Subsystem string
	Name      string // defaults to "observations"
	Help      string

	// Quantiles reported for every digest. Values outside of [0, 1] are
	// ignored.
	Quantiles []float64
}

// Collector is a prometheus.Collector reporting one summary per digest,
// labeled by the digest name.
type Collector struct {
	reg       *registry.T
	quantiles []float64

	summary *prometheus.Desc
	digests *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns a Collector over the digests in reg.
func New(reg *registry.T, opts Opts) *Collector {
	if opts.Name == "" {
		opts.Name = "observations"
	}
	if opts.Help == "" {
		opts.Help = "Quantile estimates of observed values."
	}
	if len(opts.Quantiles) == 0 {
		opts.Quantiles = DefaultQuantiles
	}

	quantiles := make([]float64, 0, len(opts.Quantiles))
	for _, q := range opts.Quantiles {
		if q >= 0 && q <= 1 {
			quantiles = append(quantiles, q)
		}
	}

	return &Collector{
		reg:       reg,
		quantiles: quantiles,

		summary: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
			opts.Help,
			[]string{"digest"}, nil),

		digests: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, opts.Subsystem, "digests"),
			"Number of digests being tracked.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.summary
	ch <- c.digests
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	n := 0
	c.reg.Iterate(func(name string, s tdigest.Snapshot) bool {
		ch <- c.metric(name, s)
		n++
		return true
	})

	ch <- prometheus.MustNewConstMetric(c.digests, prometheus.GaugeValue, float64(n))
}

func (c *Collector) metric(name string, s tdigest.Snapshot) prometheus.Metric {
	d := tdigest.FromSnapshot(s)

	quantiles := make(map[float64]float64, len(c.quantiles))
	for _, q := range c.quantiles {
		v, err := d.Quantile(q)
		if err != nil {
			return prometheus.NewInvalidMetric(c.summary, err)
		}
		quantiles[q] = v
	}

	m, err := prometheus.NewConstSummary(c.summary,
		uint64(math.Round(d.Count())), d.Sum(), quantiles, name)
	if err != nil {
		return prometheus.NewInvalidMetric(c.summary, err)
	}
	return m
}
