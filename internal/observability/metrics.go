package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/mlcompare/internal/platform/envutil"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

// Metrics is a small Prometheus text-format registry for the console and
// the training API.
type Metrics struct {
	httpRequests  *family
	httpLatency   *family
	httpInflight  *family
	upstreamCalls *family
	upstreamTime  *family
	trainingRuns  *family
	trainingTime  *family
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process registry, or nil when metrics are disabled.
// Every Metrics method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = New()
		if log != nil {
			log.Info("metrics enabled", "path", "/metrics")
		}
	})
	return instance
}

// New builds an unregistered Metrics, mainly for tests.
func New() *Metrics {
	return &Metrics{
		httpRequests: newFamily(counterKind, "mlcompare_http_requests_total", "HTTP requests served.",
			"method", "route", "status"),
		httpLatency: newHistogram("mlcompare_http_request_duration_seconds", "HTTP request latency.", nil,
			"method", "route"),
		httpInflight: newFamily(gaugeKind, "mlcompare_http_inflight_requests", "HTTP requests in flight."),
		upstreamCalls: newFamily(counterKind, "mlcompare_training_api_calls_total", "Calls made to the training API.",
			"op", "outcome"),
		upstreamTime: newHistogram("mlcompare_training_api_call_duration_seconds", "Training API call latency.", nil,
			"op"),
		trainingRuns: newFamily(counterKind, "mlcompare_training_runs_total", "Model training runs executed.",
			"model_type", "status"),
		trainingTime: newHistogram("mlcompare_training_run_duration_seconds", "Model training run duration.",
			[]float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5}, "model_type"),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, f := range []*family{
		m.httpRequests, m.httpLatency, m.httpInflight,
		m.upstreamCalls, m.upstreamTime,
		m.trainingRuns, m.trainingTime,
	} {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveHTTP(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.httpRequests.add(1, method, route, status)
	m.httpLatency.observe(dur.Seconds(), method, route)
}

func (m *Metrics) HTTPInflightInc() {
	if m == nil {
		return
	}
	m.httpInflight.add(1)
}

func (m *Metrics) HTTPInflightDec() {
	if m == nil {
		return
	}
	m.httpInflight.add(-1)
}

// ObserveUpstream records one training API call; outcome is "ok" or an error kind.
func (m *Metrics) ObserveUpstream(op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.upstreamCalls.add(1, op, outcome)
	m.upstreamTime.observe(dur.Seconds(), op)
}

func (m *Metrics) ObserveTrainingRun(modelType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.add(1, modelType, status)
	m.trainingTime.observe(dur.Seconds(), modelType)
}

type kind string

const (
	counterKind   kind = "counter"
	gaugeKind     kind = "gauge"
	histogramKind kind = "histogram"
)

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30}

// family is one named metric and all of its label combinations.
type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	buckets []float64

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	value  float64
	counts []uint64
	sum    float64
	count  uint64
}

func newFamily(k kind, name, help string, labels ...string) *family {
	return &family{name: name, help: help, kind: k, labels: labels, series: map[string]*series{}}
}

func newHistogram(name, help string, buckets []float64, labels ...string) *family {
	f := newFamily(histogramKind, name, help, labels...)
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	f.buckets = buckets
	return f
}

// get returns the series for values, creating it. Callers hold f.mu.
func (f *family) get(values []string) *series {
	key := f.key(values)
	s, ok := f.series[key]
	if !ok {
		s = &series{}
		if f.kind == histogramKind {
			s.counts = make([]uint64, len(f.buckets))
		}
		f.series[key] = s
	}
	return s
}

func (f *family) add(delta float64, values ...string) {
	f.mu.Lock()
	f.get(values).value += delta
	f.mu.Unlock()
}

func (f *family) observe(v float64, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.get(values)
	s.sum += v
	s.count++
	for i, upper := range f.buckets {
		if v <= upper {
			s.counts[i]++
		}
	}
}

func (f *family) value(values ...string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.series[f.key(values)]; ok {
		return s.value
	}
	return 0
}

// key renders label pairs without braces; missing values become "unknown".
func (f *family) key(values []string) string {
	pairs := make([]string, len(f.labels))
	for i, name := range f.labels {
		v := "unknown"
		if i < len(values) && values[i] != "" {
			v = values[i]
		}
		pairs[i] = name + `="` + labelEscaper.Replace(v) + `"`
	}
	return strings.Join(pairs, ",")
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func braces(pairs ...string) string {
	var nonEmpty []string
	for _, p := range pairs {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return "{" + strings.Join(nonEmpty, ",") + "}"
}

func (f *family) WritePrometheus(w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf strings.Builder
	fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	if len(f.series) == 0 && len(f.labels) == 0 && f.kind != histogramKind {
		fmt.Fprintf(&buf, "%s 0\n", f.name)
	}
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := f.series[k]
		if f.kind != histogramKind {
			fmt.Fprintf(&buf, "%s%s %g\n", f.name, braces(k), s.value)
			continue
		}
		for i, upper := range f.buckets {
			fmt.Fprintf(&buf, "%s_bucket%s %d\n", f.name, braces(k, fmt.Sprintf(`le="%g"`, upper)), s.counts[i])
		}
		fmt.Fprintf(&buf, "%s_bucket%s %d\n", f.name, braces(k, `le="+Inf"`), s.count)
		fmt.Fprintf(&buf, "%s_sum%s %g\n", f.name, braces(k), s.sum)
		fmt.Fprintf(&buf, "%s_count%s %d\n", f.name, braces(k), s.count)
	}
	_, err := io.WriteString(w, buf.String())
	return err
}
