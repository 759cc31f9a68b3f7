package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"rentflow/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 业务与HTTP指标
type Metrics struct {
	registry        *prometheus.Registry
	httpReqCnt      *prometheus.CounterVec
	httpDur         *prometheus.HistogramVec
	leaseEvents     *prometheus.CounterVec
	paymentEvents   *prometheus.CounterVec
	notifyDelivered *prometheus.CounterVec
}

// New 创建独立注册表的指标集合
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route"})
	leaseEvents := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "lease_events_total"}, []string{"event"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "payment_events_total"}, []string{"event"})
	notifyDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "notification_deliveries_total"}, []string{"channel", "result"})
	r.MustRegister(httpReqCnt, httpDur, leaseEvents, paymentEvents, notifyDelivered)

	return &Metrics{
		registry:        r,
		httpReqCnt:      httpReqCnt,
		httpDur:         httpDur,
		leaseEvents:     leaseEvents,
		paymentEvents:   paymentEvents,
		notifyDelivered: notifyDelivered,
	}
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default 全局指标实例
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(config.GetConfig().Metrics.Namespace)
	})
	return defaultMetrics
}

// Middleware gin请求指标中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 输出
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LeaseEvent 记录租约事件：allocated, terminated, expired, conflict
func (m *Metrics) LeaseEvent(event string) {
	if m == nil {
		return
	}
	m.leaseEvents.WithLabelValues(event).Inc()
}

// PaymentEvent 记录支付事件：submitted, verified, rejected
func (m *Metrics) PaymentEvent(event string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(event).Inc()
}

// NotificationDelivered 记录通知投递结果
func (m *Metrics) NotificationDelivered(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.notifyDelivered.WithLabelValues(channel, result).Inc()
}

// Registry 用于测试
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
