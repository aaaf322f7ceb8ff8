package plugin

import (
	"context"
	"log/slog"

	"github.com/GoCodeAlone/marketplace/archive"
	"github.com/GoCodeAlone/marketplace/journal"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/observability"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
)

// Fetcher downloads the full body of a URL.
type Fetcher interface {
	Request(ctx context.Context, url string) ([]byte, error)
}

// Journal records finished lifecycle operations.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Option configures an Installer, Remover or Lifecycle. Each constructor
// uses the options that apply to it.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *tracing.OperationTracer
	journal   Journal
	endpoints manifest.Endpoints
	extractor archive.Extractor
	leases    *Leases
}

func newOptions(opts []Option) options {
	o := options{
		logger:    slog.Default(),
		endpoints: manifest.DefaultEndpoints(),
		extractor: archive.Native{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.leases == nil {
		o.leases = NewLeases()
	}
	return o
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the operation span helper.
func WithTracer(t *tracing.OperationTracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithJournal records every finished operation in j.
func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithEndpoints overrides the hosts install sources are derived from.
func WithEndpoints(e manifest.Endpoints) Option {
	return func(o *options) { o.endpoints = e.WithDefaults() }
}

// WithExtractor replaces the archive capability.
func WithExtractor(x archive.Extractor) Option {
	return func(o *options) {
		if x != nil {
			o.extractor = x
		}
	}
}

// WithLeases shares a lease table between lifecycles.
func WithLeases(l *Leases) Option {
	return func(o *options) { o.leases = l }
}
