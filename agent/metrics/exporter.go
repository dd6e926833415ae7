package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

// Exporter publishes call-center, task and cache figures on a private registry.
// A nil *Exporter is a valid no-op.
type Exporter struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	queueWait       prometheus.Histogram
	tasksTotal      *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	agents          *prometheus.GaugeVec
	cacheHitRate    *prometheus.GaugeVec
	events          *prometheus.CounterVec
}

func NewExporter(registry *prometheus.Registry) (*Exporter, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiflow_call_sessions_total",
				Help: "Voice sessions that reached a terminal state",
			},
			[]string{"status"},
		),
		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aiflow_call_session_duration_seconds",
				Help:    "Voice session duration from start to terminal state",
				Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
			},
		),
		queueWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aiflow_call_queue_wait_seconds",
				Help:    "Time a queued call waited before a line was free",
				Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiflow_tasks_total",
				Help: "Dispatched agent tasks by outcome",
			},
			[]string{"capability", "status", "reason"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aiflow_task_duration_milliseconds",
				Help:    "Agent task duration in milliseconds",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 30000},
			},
			[]string{"capability"},
		),
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aiflow_agents",
				Help: "Agents per capability and status",
			},
			[]string{"capability", "status"},
		),
		cacheHitRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aiflow_cache_hit_rate",
				Help: "Hit rate of each result cache",
			},
			[]string{"cache"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiflow_events_total",
				Help: "Lifecycle events published by the orchestrator",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{
		e.sessionsTotal, e.sessionDuration, e.queueWait, e.tasksTotal,
		e.taskDuration, e.agents, e.cacheHitRate, e.events,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Exporter) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Exporter) ObserveSession(status contractx.CallStatus, d time.Duration) {
	if e == nil {
		return
	}
	e.sessionsTotal.WithLabelValues(string(status)).Inc()
	e.sessionDuration.Observe(d.Seconds())
}

func (e *Exporter) ObserveWait(d time.Duration) {
	if e == nil {
		return
	}
	e.queueWait.Observe(d.Seconds())
}

func (e *Exporter) ObserveTask(kind contractx.CapabilityKind, status contractx.TaskStatus, reason string, d time.Duration) {
	if e == nil {
		return
	}
	e.tasksTotal.WithLabelValues(string(kind), string(status), reason).Inc()
	e.taskDuration.WithLabelValues(string(kind)).Observe(float64(d.Milliseconds()))
}

func (e *Exporter) SetAgents(kind contractx.CapabilityKind, status contractx.AgentStatus, n int) {
	if e == nil {
		return
	}
	e.agents.WithLabelValues(string(kind), string(status)).Set(float64(n))
}

func (e *Exporter) SetCacheHitRate(cache string, rate float64) {
	if e == nil {
		return
	}
	e.cacheHitRate.WithLabelValues(cache).Set(rate)
}

func (e *Exporter) ObserveEvent(kind string) {
	if e == nil {
		return
	}
	e.events.WithLabelValues(kind).Inc()
}
