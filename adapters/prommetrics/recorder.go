// Package prommetrics implements core.MetricsRecorder on the Prometheus client.
package prommetrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-accounttx/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "accounttx"

// Recorder lazily registers one vector per metric name and label set.
// Names are sanitized: "accounttx.transaction_commit.total" becomes
// "accounttx_transaction_commit_total".
type Recorder struct {
	registry  *prometheus.Registry
	namespace string
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	onError    func(name string, err error)
}

type Option func(*Recorder)

func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// WithErrorHandler receives registration conflicts, which are otherwise dropped.
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(r *Recorder) {
		r.onError = fn
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		registry:   prometheus.NewRegistry(),
		namespace:  DefaultNamespace,
		buckets:    []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metric, labels := sanitizeName(name), labelNames(tags)
	if metric == "" {
		return
	}
	vec, err := r.counterVec(metric, labels)
	if err != nil {
		r.reportError(metric, err)
		return
	}
	vec.With(labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metric, labels := sanitizeName(name), labelNames(tags)
	if metric == "" {
		return
	}
	vec, err := r.histogramVec(metric, labels)
	if err != nil {
		r.reportError(metric, err)
		return
	}
	vec.With(labelValues(tags)).Observe(value)
}

func (r *Recorder) counterVec(name string, labels []string) (*prometheus.CounterVec, error) {
	key := vecKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[key]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "accounttx counter " + name,
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil, err
	}
	r.counters[key] = vec
	return vec, nil
}

func (r *Recorder) histogramVec(name string, labels []string) (*prometheus.HistogramVec, error) {
	key := vecKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[key]; ok {
		return vec, nil
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "accounttx histogram " + name,
		Buckets: r.buckets,
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil, err
	}
	r.histograms[key] = vec
	return vec, nil
}

func (r *Recorder) reportError(name string, err error) {
	if r.onError != nil {
		r.onError(name, err)
	}
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		if clean := sanitizeName(key); clean != "" {
			names = append(names, clean)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags))
	for key, value := range tags {
		if clean := sanitizeName(key); clean != "" {
			labels[clean] = value
		}
	}
	return labels
}

func vecKey(name string, labels []string) string {
	return name + "{" + strings.Join(labels, ",") + "}"
}

var _ core.MetricsRecorder = (*Recorder)(nil)
