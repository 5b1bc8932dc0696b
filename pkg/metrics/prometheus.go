package metrics

/* adapted from https://github.com/zsais/go-gin-prometheus
edits:
- request metrics are registered on a caller supplied registerer
- no push gateway, no basic auth, no embedded metrics server
*/

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

const defaultMetricPath = "/metrics"

type Logger interface {
	Errorf(format string, v ...interface{})
}

// RequestCounterURLLabelMappingFn controls the cardinality of the "url" label, e.g. by returning
// the route template instead of the raw path.
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// Prometheus holds the HTTP request collectors.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	MetricsPath             string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn

	gatherer prometheus.Gatherer
}

type NewPrometheusOptions struct {
	Subsystem               string
	MetricsPath             string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   Logger
}

// NewPrometheus registers the request collectors.
func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		MetricsPath:             options.MetricsPath,
		ReqCntURLLabelMappingFn: options.ReqCntURLLabelMappingFn,
		gatherer:                options.Gatherer,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.ReqCntURLLabelMappingFn == nil {
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return c.Request.URL.Path
		}
	}
	if p.gatherer == nil {
		p.gatherer = prometheus.DefaultGatherer
	}
	reg := options.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p.reqCnt = register(reg, options.Logger, NewMetric(reqCnt, options.Subsystem)).(*prometheus.CounterVec)
	p.reqDur = register(reg, options.Logger, NewMetric(reqDur, options.Subsystem)).(*prometheus.HistogramVec)
	return p
}

// register returns the already registered collector when an equal one exists.
func register(reg prometheus.Registerer, log Logger, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		if log != nil {
			log.Errorf("collector could not be registered in Prometheus, err=%v", err)
		}
	}
	return c
}

// Handler serves the gathered metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// HandlerFunc is the gin middleware recording request count and latency.
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.ReqCntURLLabelMappingFn(c)
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
	}
}
