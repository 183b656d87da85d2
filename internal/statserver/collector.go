package statserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/visiona/framebench/internal/metrics"
	"github.com/visiona/framebench/internal/types"
)

// Collector manages the Prometheus metrics of a benchmark run.
//
// It registers against its own registry so repeated construction (one
// collector per session) never trips duplicate-registration panics. It
// satisfies the session observer contract and is wired to the controller
// before playback starts.
type Collector struct {
	registry *prometheus.Registry

	// Counters
	framesTotal   prometheus.Counter
	framesDropped *prometheus.CounterVec

	// Histograms
	decodeSeconds   prometheus.Histogram
	deliverySeconds prometheus.Histogram

	// Gauges
	currentFPS  prometheus.Gauge
	memoryBytes prometheus.Gauge
	cpuPercent  prometheus.Gauge
}

// NewCollector creates a collector with a dedicated registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{registry: registry}

	c.framesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "framebench_frames_total",
		Help: "Total frame attempts processed by the pacer",
	})

	c.framesDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "framebench_frames_dropped_total",
		Help: "Dropped frames by reason",
	}, []string{"reason"})

	c.decodeSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "framebench_decode_seconds",
		Help:    "Per-frame decode latency",
		Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
	})

	c.deliverySeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "framebench_delivery_seconds",
		Help:    "Per-frame sink delivery latency",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.033, 0.1},
	})

	c.currentFPS = factory.NewGauge(prometheus.GaugeOpts{
		Name: "framebench_current_fps",
		Help: "Most recent instantaneous FPS sample",
	})

	c.memoryBytes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "framebench_memory_bytes",
		Help: "Resident set size of the benchmark process",
	})

	c.cpuPercent = factory.NewGauge(prometheus.GaugeOpts{
		Name: "framebench_cpu_percent",
		Help: "CPU utilization of the benchmark process",
	})

	return c
}

// Registry returns the collector's registry for the /metrics handler
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveFrame records one frame attempt
func (c *Collector) ObserveFrame(ev types.FrameEvent, rec metrics.FrameRecord) {
	c.framesTotal.Inc()
	if ev.Outcome == types.OutcomeDropped {
		c.framesDropped.WithLabelValues(ev.Reason.String()).Inc()
	}

	c.decodeSeconds.Observe(ev.DecodeDuration.Seconds())
	c.deliverySeconds.Observe(ev.PresentationDuration.Seconds())

	if rec.FPS > 0 {
		c.currentFPS.Set(rec.FPS)
	}
}

// ObserveResource records one memory/CPU poll
func (c *Collector) ObserveResource(s types.ResourceSample) {
	c.memoryBytes.Set(float64(s.MemoryBytes))
	c.cpuPercent.Set(s.CPUPercent)
}
