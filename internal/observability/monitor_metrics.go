package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MonitorCollector exposes metrics for the rolling-horizon monitor loop.
type MonitorCollector struct {
	gatherer prometheus.Gatherer

	TickDuration        prometheus.Histogram
	PoolSize            prometheus.Gauge
	TicksTotal          prometheus.Counter
	OracleCacheHitRatio prometheus.Gauge
	HistorySamples      prometheus.Gauge
}

// NewMonitorCollector registers monitor metrics against the provided registerer.
func NewMonitorCollector(reg prometheus.Registerer) (*MonitorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coverage_monitor_tick_duration_seconds",
		Help:    "Duration of one monitor tick, covering the coverage and reliability calls.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "coverage_monitor_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	poolGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_monitor_pool_size",
		Help: "Number of satellites in the monitored pool.",
	})
	poolGauge, err = registerGauge(reg, poolGauge, "coverage_monitor_pool_size")
	if err != nil {
		return nil, err
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_monitor_ticks_total",
		Help: "Cumulative number of monitor ticks processed.",
	})
	ticks, err = registerCounter(reg, ticks, "coverage_monitor_ticks_total")
	if err != nil {
		return nil, err
	}

	cacheRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_oracle_cache_hit_ratio",
		Help: "Hit ratio for the visibility oracle cache.",
	})
	cacheRatio, err = registerGauge(reg, cacheRatio, "coverage_oracle_cache_hit_ratio")
	if err != nil {
		return nil, err
	}

	history := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_history_samples",
		Help: "Samples currently retained in the coverage history ring.",
	})
	history, err = registerGauge(reg, history, "coverage_history_samples")
	if err != nil {
		return nil, err
	}

	return &MonitorCollector{
		gatherer:            gatherer,
		TickDuration:        tickHistogram,
		PoolSize:            poolGauge,
		TicksTotal:          ticks,
		OracleCacheHitRatio: cacheRatio,
		HistorySamples:      history,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MonitorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one monitor tick and its duration.
func (c *MonitorCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.TicksTotal != nil {
		c.TicksTotal.Inc()
	}
}

// SetPoolSize updates the pool size gauge.
func (c *MonitorCollector) SetPoolSize(count int) {
	if c == nil || c.PoolSize == nil {
		return
	}
	c.PoolSize.Set(float64(count))
}

// SetHistorySamples updates the retained history gauge.
func (c *MonitorCollector) SetHistorySamples(count int) {
	if c == nil || c.HistorySamples == nil {
		return
	}
	c.HistorySamples.Set(float64(count))
}

// SetOracleCacheHitRatio sets the oracle cache hit ratio.
func (c *MonitorCollector) SetOracleCacheHitRatio(ratio float64) {
	if c == nil || c.OracleCacheHitRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.OracleCacheHitRatio.Set(ratio)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
