package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flatwatch/scraper/internal/progress"
)

// PrometheusSink exports pipeline progress metrics. It owns the collectors
// for cycle lifecycle and per-source extraction results.
type PrometheusSink struct {
	cyclesStarted prometheus.Counter
	cyclesDone    prometheus.Counter
	cyclesRunning prometheus.Gauge
	cycleRuntime  prometheus.Histogram

	groupResults  *prometheus.CounterVec
	groupItems    *prometheus.CounterVec
	groupSkipped  *prometheus.CounterVec
	groupDuration *prometheus.HistogramVec

	itemsPersisted prometheus.Counter

	tracker *cycleTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		cyclesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatwatch_cycles_started_total",
			Help: "Total monitoring cycles started.",
		}),
		cyclesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatwatch_cycles_completed_total",
			Help: "Total monitoring cycles completed.",
		}),
		cyclesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flatwatch_cycles_running",
			Help: "Current number of running cycles.",
		}),
		cycleRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flatwatch_cycle_runtime_seconds",
			Help:    "Wall time per completed cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		groupResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flatwatch_groups_total",
			Help: "Group extractions partitioned by source, strategy, and result.",
		}, []string{"source", "strategy", "result"}),
		groupItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flatwatch_extracted_items_total",
			Help: "Listings extracted per source.",
		}, []string{"source"}),
		groupSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flatwatch_skipped_items_total",
			Help: "Malformed listings skipped during extraction per source.",
		}, []string{"source"}),
		groupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flatwatch_group_duration_seconds",
			Help:    "Extraction duration partitioned by source and strategy.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source", "strategy"}),
		itemsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatwatch_persisted_items_total",
			Help: "Listings accepted by the task store.",
		}),
		tracker: newCycleTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.cyclesStarted,
		s.cyclesDone,
		s.cyclesRunning,
		s.cycleRuntime,
		s.groupResults,
		s.groupItems,
		s.groupSkipped,
		s.groupDuration,
		s.itemsPersisted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCycleStart:
		s.cyclesStarted.Inc()
		if s.tracker.start(evt.CycleID) {
			s.cyclesRunning.Inc()
		}
	case progress.StageCycleDone:
		s.cyclesDone.Inc()
		if evt.Dur > 0 {
			s.cycleRuntime.Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.CycleID) {
			s.cyclesRunning.Dec()
		}
	case progress.StageGroupDone:
		s.observeGroup(evt, "success")
	case progress.StageGroupFailed:
		s.observeGroup(evt, "failure")
	case progress.StageTaskPersisted:
		if evt.Items > 0 {
			s.itemsPersisted.Add(float64(evt.Items))
		}
	}
}

func (s *PrometheusSink) observeGroup(evt progress.Event, result string) {
	source := evt.Source
	if source == "" {
		source = "unknown"
	}
	strategy := evt.Strategy
	if strategy == "" {
		strategy = "none"
	}
	s.groupResults.WithLabelValues(source, strategy, result).Inc()
	if evt.Items > 0 {
		s.groupItems.WithLabelValues(source).Add(float64(evt.Items))
	}
	if evt.Skipped > 0 {
		s.groupSkipped.WithLabelValues(source).Add(float64(evt.Skipped))
	}
	if evt.Dur > 0 {
		s.groupDuration.WithLabelValues(source, strategy).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type cycleTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newCycleTracker() *cycleTracker {
	return &cycleTracker{running: make(map[[16]byte]struct{})}
}

func (t *cycleTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *cycleTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
