// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/atlas/logger"
)

type Metrics struct {
	OnlineSessions   prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessageLatency   prometheus.Histogram
	EventsBroadcast  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	Submissions      *prometheus.CounterVec
	TickLatency      prometheus.Histogram
	SnapshotErrors   prometheus.Counter
}

// NewMetrics 在给定的 registry 上注册所有指标，传 nil 时新建一个
func NewMetrics(namespace string, registry *prometheus.Registry) (*Metrics, *prometheus.Registry) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		OnlineSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_sessions",
			Help:      "Number of open WebSocket sessions",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of WebSocket frames received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		EventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_broadcast_total",
			Help:      "Room events delivered to subscriber outboxes",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Room events dropped because a subscriber outbox was full",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Player submissions by kind and outcome",
		}, []string{"kind", "result"}),
		TickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent ticking every room once",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Failed snapshot exports",
		}),
	}

	registry.MustRegister(
		m.OnlineSessions,
		m.ActiveRooms,
		m.MessagesReceived,
		m.MessageLatency,
		m.EventsBroadcast,
		m.EventsDropped,
		m.Submissions,
		m.TickLatency,
		m.SnapshotErrors,
	)

	return m, registry
}

// Monitor 所有方法对 nil 接收者安全，未启用监控时可以直接传 nil
type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	metrics, registry := NewMetrics(namespace, nil)
	return &Monitor{
		metrics:   metrics,
		registry:  registry,
		startTime: time.Now(),
	}
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

var publishOnce sync.Once

// Handler 返回暴露 /metrics 和 /debug/vars 的 handler
func (m *Monitor) Handler() http.Handler {
	// expvar 是进程级的，只能发布一次
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			m.mutex.Lock()
			defer m.mutex.Unlock()
			return m.requestCount
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (m *Monitor) StartServer(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("Metrics server error: %v", err)
		}
	}()
	return srv
}

func (m *Monitor) IncOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Inc()
}

func (m *Monitor) DecOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncEventBroadcast(eventType string) {
	if m == nil {
		return
	}
	m.metrics.EventsBroadcast.WithLabelValues(eventType).Inc()
}

func (m *Monitor) IncEventDropped() {
	if m == nil {
		return
	}
	m.metrics.EventsDropped.Inc()
}

// IncSubmission kind 为 puzzle/meta/final/hint，result 为 ok 或错误码
func (m *Monitor) IncSubmission(kind, result string) {
	if m == nil {
		return
	}
	m.metrics.Submissions.WithLabelValues(kind, result).Inc()
}

func (m *Monitor) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.TickLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncSnapshotErrors() {
	if m == nil {
		return
	}
	m.metrics.SnapshotErrors.Inc()
}
