// Package mirror aggregates plugin entries from mirror lists and resolves
// each entry to its published manifest. Every remote fetch settles on its own:
// a failing mirror or manifest is logged and dropped, never fatal to the batch.
package mirror

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/observability"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Request(ctx context.Context, url string) ([]byte, error)
}

// Option configures an Aggregator or Resolver.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      *tracing.OperationTracer
	concurrency int
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records fetch outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the span helper used per fetch.
func WithTracer(t *tracing.OperationTracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithConcurrency caps in-flight fetches. Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) group() *errgroup.Group {
	g := new(errgroup.Group)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	return g
}

// Aggregator merges mirror lists into one deduplicated entry list.
type Aggregator struct {
	fetch Fetcher
	options
}

// NewAggregator creates an Aggregator.
func NewAggregator(fetch Fetcher, opts ...Option) *Aggregator {
	return &Aggregator{fetch: fetch, options: newOptions(opts)}
}

// MergeMirrorlist fetches every URL concurrently and concatenates the lists
// in URL order, keeping the first occurrence of each structurally equal
// entry. Mirrors that fail to fetch or parse contribute nothing; when all of
// them fail the result is empty.
func (a *Aggregator) MergeMirrorlist(ctx context.Context, urls []string) []manifest.MirrorEntry {
	lists := make([][]manifest.MirrorEntry, len(urls))
	g := a.group()
	for i, u := range urls {
		g.Go(func() error {
			entries, err := a.fetchList(ctx, u)
			if err != nil {
				a.logger.Warn("mirror list unavailable", "url", u, "err", err)
				return nil
			}
			lists[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]manifest.MirrorEntry, 0)
	seen := make(map[string]struct{})
	for _, entries := range lists {
		for _, e := range entries {
			key := e.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, e)
		}
	}
	a.logger.Debug("mirror lists merged", "mirrors", len(urls), "entries", len(merged))
	return merged
}

func (a *Aggregator) fetchList(ctx context.Context, url string) (entries []manifest.MirrorEntry, err error) {
	ctx, span := a.tracer.StartFetch(ctx, "mirrorlist", url)
	defer func() {
		a.metrics.RecordFetch("mirrorlist", err)
		tracing.End(span, err)
	}()
	body, err := a.fetch.Request(ctx, url)
	if err != nil {
		return nil, err
	}
	return manifest.ParseMirrorList(body)
}

// Resolver fetches the manifest document of each mirror entry.
type Resolver struct {
	fetch     Fetcher
	endpoints manifest.Endpoints
	options
}

// NewResolver creates a Resolver that derives manifest URLs from endpoints.
func NewResolver(fetch Fetcher, endpoints manifest.Endpoints, opts ...Option) *Resolver {
	return &Resolver{fetch: fetch, endpoints: endpoints.WithDefaults(), options: newOptions(opts)}
}

// GetManifestList fetches all manifests concurrently and returns the ones
// that parsed, in entry order. Slugs are not deduplicated here.
func (r *Resolver) GetManifestList(ctx context.Context, entries []manifest.MirrorEntry) []*manifest.Manifest {
	resolved := make([]*manifest.Manifest, len(entries))
	g := r.group()
	for i, e := range entries {
		g.Go(func() error {
			url := r.endpoints.ManifestURL(e.Repository)
			m, err := r.fetchManifest(ctx, url)
			if err != nil {
				r.logger.Warn("manifest unavailable", "repo", e.Repository.Repo, "branch", e.Repository.Branch, "url", url, "err", err)
				return nil
			}
			resolved[i] = m
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*manifest.Manifest, 0, len(resolved))
	for _, m := range resolved {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (r *Resolver) fetchManifest(ctx context.Context, url string) (m *manifest.Manifest, err error) {
	ctx, span := r.tracer.StartFetch(ctx, "manifest", url)
	defer func() {
		r.metrics.RecordFetch("manifest", err)
		tracing.End(span, err)
	}()
	body, err := r.fetch.Request(ctx, url)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(body)
}

// Catalog chains an Aggregator and a Resolver into one catalog load.
type Catalog struct {
	Aggregator *Aggregator
	Resolver   *Resolver
	Metrics    *observability.Metrics
}

// Load merges the mirror lists at urls and resolves every entry.
func (c *Catalog) Load(ctx context.Context, urls []string) []*manifest.Manifest {
	entries := c.Aggregator.MergeMirrorlist(ctx, urls)
	manifests := c.Resolver.GetManifestList(ctx, entries)
	c.Metrics.SetCatalogSize(len(manifests))
	return manifests
}
