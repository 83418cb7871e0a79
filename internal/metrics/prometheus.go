package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodline_analyses_total",
		Help: "Total number of video analyses, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moodline_stage_duration_seconds",
		Help:    "Duration of analysis stages",
		Buckets: []float64{0.05, 0.25, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moodline_frames_decoded_total",
		Help: "Total number of frames decoded across all analyses",
	})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodline_frames_classified_total",
		Help: "Total number of sampled frames sent to the classifier, by emotion",
	}, []string{"emotion"})

	ClassifierDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moodline_classifier_duration_seconds",
		Help:    "Latency of a single classifier call",
		Buckets: prometheus.DefBuckets,
	})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moodline_active_analyses",
		Help: "Number of analyses currently running",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moodline_http_requests_total",
		Help: "Total number of HTTP requests, by route and status code",
	}, []string{"method", "route", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moodline_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveStage 记录某个阶段的耗时
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// HTTP 按路由模板统计请求，未匹配路由归为 unmatched
func HTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
