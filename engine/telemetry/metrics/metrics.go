// Package metrics defines the Provider abstraction siteforge's components
// report through, plus a Prometheus-backed implementation. Ported from the
// teacher's dual-provider telemetry/metrics package.
package metrics

// CommonOpts names a metric; Namespace/Subsystem/Name compose into the
// Prometheus-style fully qualified name "namespace_subsystem_name".
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

type Counter interface{ Inc(delta float64, labelValues ...string) }
type Gauge interface{ Set(value float64, labelValues ...string) }
type Histogram interface{ Observe(value float64, labelValues ...string) }

// Provider is the minimal metrics backend siteforge components depend on.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
}

type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

func (noopCounter) Inc(float64, ...string)      {}
func (noopGauge) Set(float64, ...string)        {}
func (noopHistogram) Observe(float64, ...string) {}

// NoopProvider discards every metric. Used when no -metrics-addr is given.
type NoopProvider struct{}

func (NoopProvider) NewCounter(CounterOpts) Counter     { return noopCounter{} }
func (NoopProvider) NewGauge(GaugeOpts) Gauge           { return noopGauge{} }
func (NoopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
