package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AnswersSubmitted - принятые ответы по режиму и правильности
	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_answers_submitted_total",
			Help: "Answers accepted by the placement engine",
		},
		[]string{"mode", "correct"},
	)

	// RunsCompleted - завершённые проходы по режиму, уровню и причине
	RunsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_runs_completed_total",
			Help: "Completed assessments and sections",
		},
		[]string{"mode", "level", "expired"},
	)

	// OutboxEvents - обработанные события outbox по типу и результату
	OutboxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_outbox_events_total",
			Help: "Outbox events handled by the dispatcher",
		},
		[]string{"type", "status"},
	)
)

var registerOnce sync.Once

// Init регистрирует метрики в глобальном реестре
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, AnswersSubmitted, RunsCompleted, OutboxEvents)
	})
}

// ObserveAnswer учитывает принятый ответ
func ObserveAnswer(mode string, correct bool) {
	AnswersSubmitted.WithLabelValues(mode, strconv.FormatBool(correct)).Inc()
}

// ObserveCompletion учитывает завершение прохода
func ObserveCompletion(mode, level string, expired bool) {
	RunsCompleted.WithLabelValues(mode, level, strconv.FormatBool(expired)).Inc()
}

// ObserveOutbox учитывает результат обработки события
func ObserveOutbox(eventType, status string) {
	OutboxEvents.WithLabelValues(eventType, status).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
