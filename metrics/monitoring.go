package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitoringConf controls the prometheus exposition endpoint and the
// shutdown counter report.
type MonitoringConf struct {
	Metrics     bool   `json:"metrics" yaml:"metrics"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"`
	// ReportFile enables a JSON dump of the counters on shutdown.
	ReportFile bool `json:"report_file" yaml:"report_file"`
	// ReportPath is the path prefix of the dump file.
	ReportPath string `json:"report_path" yaml:"report_path"`
}

type CollectorOpts struct {
	Namespace string
	Subsystem string
}

//nolint:gochecknoglobals
var (
	collectorMu sync.RWMutex
	collector   *gaugeCollector
)

type gaugeCollector struct {
	opts     CollectorOpts
	registry *prometheus.Registry
	gauges   map[MKey]prometheus.Gauge
	safe     *SafeMetrics
}

// Init prepares the global collector. Inc/Dec are no-ops until it is called.
func Init(opts CollectorOpts) {
	collectorMu.Lock()
	defer collectorMu.Unlock()

	safe := NewSafeMetrics()
	safe.PrettyPrint = true

	collector = &gaugeCollector{
		opts:     opts,
		registry: prometheus.NewRegistry(),
		gauges:   map[MKey]prometheus.Gauge{},
		safe:     safe,
	}
}

// RegisterGauges creates a prometheus gauge for each key.
func RegisterGauges(keys ...MKey) {
	collectorMu.Lock()
	defer collectorMu.Unlock()

	if collector == nil {
		return
	}

	for _, key := range keys {
		if _, ok := collector.gauges[key]; ok {
			continue
		}

		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: collector.opts.Namespace,
			Subsystem: collector.opts.Subsystem,
			Name:      promName(key),
		})
		collector.registry.MustRegister(gauge)
		collector.gauges[key] = gauge
	}
}

// Inc bumps the counter stored under key and, when a gauge is registered for
// it, the prometheus gauge too.
func Inc(key MKey) {
	collectorMu.RLock()
	defer collectorMu.RUnlock()

	if collector == nil {
		return
	}

	collector.safe.Add(key)
	if gauge, ok := collector.gauges[key]; ok {
		gauge.Inc()
	}
}

// Dec lowers the registered gauge; the counters are monotonic and untouched.
func Dec(key MKey) {
	collectorMu.RLock()
	defer collectorMu.RUnlock()

	if collector == nil {
		return
	}
	if gauge, ok := collector.gauges[key]; ok {
		gauge.Dec()
	}
}

// Value returns the current count stored under key.
func Value(key MKey) uint64 {
	collectorMu.RLock()
	defer collectorMu.RUnlock()

	if collector == nil {
		return 0
	}
	return collector.safe.Value(key)
}

// WriteReport dumps the collected counters as JSON under the path prefix.
// No-op until Init is called.
func WriteReport(pathPrefix string, addTime bool) error {
	collectorMu.RLock()
	defer collectorMu.RUnlock()

	if collector == nil {
		return nil
	}
	return collector.safe.WriteToFile(pathPrefix, addTime)
}

// GetMonitoringMux returns the handler with the metrics exposition endpoint,
// or an empty mux when monitoring is disabled.
func GetMonitoringMux(conf MonitoringConf) http.Handler {
	mux := http.NewServeMux()
	if !conf.Metrics {
		return mux
	}

	path := conf.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	collectorMu.RLock()
	defer collectorMu.RUnlock()

	if collector == nil {
		return mux
	}

	mux.Handle(path, promhttp.HandlerFor(collector.registry, promhttp.HandlerOpts{}))
	return mux
}

func promName(key MKey) string {
	name := strings.ToLower(string(key))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
