package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// fast (0 - 500ms)
	5, 10, 25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium (500ms - 2s)
	750, 1000, 1500, 2000,
	// slow (2s - 30s)
	3000, 5000, 10000, 30000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
		)
	}
	return metric
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var MetricsUpgradeTotal = &Metric{
	ID:          "upgradeTotal",
	Name:        "upgrade_total",
	Description: "membership upgrades partitioned by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var MetricsExpiredMemberships = &Metric{
	ID:          "expiredMemberships",
	Name:        "expired_memberships_total",
	Description: "memberships deactivated by the expiry sweep.",
	Type:        "counter",
}

var (
	bpDur          = NewMetric(MetricsBusinessProcess, "").(*prometheus.HistogramVec)
	upgradeTotal   = NewMetric(MetricsUpgradeTotal, "").(*prometheus.CounterVec)
	expiredTotal   = NewMetric(MetricsExpiredMemberships, "").(prometheus.Counter)
	businessMetric = []prometheus.Collector{bpDur, upgradeTotal, expiredTotal}
)

func init() {
	prometheus.MustRegister(businessMetric...)
}

// ObserveBusinessProcess records the latency of a business step started at start.
func ObserveBusinessProcess(typ, subtype string, start time.Time) {
	bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

// IncUpgrade counts one upgrade attempt by result, e.g. "success", "rejected", "failed".
func IncUpgrade(result string) {
	upgradeTotal.WithLabelValues(result).Inc()
}

func AddExpiredMemberships(n int) {
	if n > 0 {
		expiredTotal.Add(float64(n))
	}
}

// MillisecondsSince returns the elapsed time since start in milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

const (
	RefererKey = "X-Referer"
)
