// Package metrics exposes planner activity as Prometheus metrics. A
// Collector subscribes to the event bus, so components never import it.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/heist/internal/event"
)

// Metrics holds every heist metric.
type Metrics struct {
	Iterations       *prometheus.CounterVec
	IterationSeconds prometheus.Histogram
	BatchesPlanned   prometheus.Counter
	WorkersSpawned   *prometheus.CounterVec
	ThreadsSpawned   *prometheus.CounterVec
	ShareRounds      prometheus.Counter
	Signals          *prometheus.CounterVec
	CapacityFree     prometheus.Gauge
	MoneyPerSecond   prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heist_iterations_total",
				Help: "Total number of finished planner iterations",
			},
			[]string{"success"},
		),
		IterationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "heist_iteration_duration_seconds",
				Help:    "Planner iteration duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		BatchesPlanned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "heist_batches_planned_total",
				Help: "Total number of HWGW batches committed",
			},
		),
		WorkersSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heist_workers_spawned_total",
				Help: "Total number of worker processes launched",
			},
			[]string{"script"},
		),
		ThreadsSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heist_threads_spawned_total",
				Help: "Total number of worker threads launched",
			},
			[]string{"script"},
		),
		ShareRounds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "heist_share_rounds_total",
				Help: "Total number of times leftover capacity was shared",
			},
		),
		Signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heist_signals_total",
				Help: "Total number of signals dispatched to handlers",
			},
			[]string{"code"},
		),
		CapacityFree: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "heist_capacity_free_gb",
				Help: "Capacity left unreserved by the last committed plan",
			},
		),
		MoneyPerSecond: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "heist_money_per_second",
				Help: "Throughput estimate of the last iteration",
			},
		),
	}
}

// NewRegistry creates a registry holding a fresh set of metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns the /metrics handler for reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Collector feeds Metrics from an event bus.
type Collector struct {
	m   *Metrics
	bus *event.Bus

	mu  sync.Mutex
	ids []string
}

// NewCollector subscribes m to bus. Call Close to unsubscribe.
func NewCollector(m *Metrics, bus *event.Bus) *Collector {
	c := &Collector{m: m, bus: bus}
	c.ids = []string{
		bus.Subscribe(event.TypeIterationFinished, c.iterationFinished),
		bus.Subscribe(event.TypePlanCommitted, c.planCommitted),
		bus.Subscribe(event.TypeWorkersSpawned, c.workersSpawned),
		bus.Subscribe(event.TypeShareRound, func(event.Event) { c.m.ShareRounds.Inc() }),
		bus.Subscribe(event.TypeSignalDispatched, c.signalDispatched),
	}
	return c
}

// Close unsubscribes from the bus.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.ids {
		c.bus.Unsubscribe(id)
	}
	c.ids = nil
}

func (c *Collector) iterationFinished(e event.Event) {
	ev, ok := e.(event.IterationFinishedEvent)
	if !ok {
		return
	}
	c.m.Iterations.WithLabelValues(strconv.FormatBool(ev.Err == nil)).Inc()
	c.m.IterationSeconds.Observe(ev.Elapsed.Seconds())
	if ev.Err == nil {
		c.m.MoneyPerSecond.Set(ev.MoneyPerSecond)
	}
}

func (c *Collector) planCommitted(e event.Event) {
	ev, ok := e.(event.PlanCommittedEvent)
	if !ok {
		return
	}
	c.m.BatchesPlanned.Add(float64(ev.Batches))
	c.m.CapacityFree.Set(ev.FreeCapacity)
}

func (c *Collector) workersSpawned(e event.Event) {
	ev, ok := e.(event.WorkersSpawnedEvent)
	if !ok {
		return
	}
	c.m.WorkersSpawned.WithLabelValues(ev.Script).Add(float64(ev.Processes))
	c.m.ThreadsSpawned.WithLabelValues(ev.Script).Add(float64(ev.Threads))
}

func (c *Collector) signalDispatched(e event.Event) {
	ev, ok := e.(event.SignalDispatchedEvent)
	if !ok {
		return
	}
	c.m.Signals.WithLabelValues(ev.Name).Inc()
}
