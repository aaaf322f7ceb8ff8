// Package marketplace assembles the plugin marketplace client: mirror
// aggregation, manifest resolution, the list controller and the plugin
// lifecycle, wired to the host directories and services named by a
// config.HostConfig.
//
//	svc, err := marketplace.New(ctx, hostCfg, marketplace.WithLogger(logger))
//	if err != nil { ... }
//	defer svc.Close()
//	res := svc.Install(ctx, m)
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/GoCodeAlone/marketplace/cache"
	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/host"
	"github.com/GoCodeAlone/marketplace/journal"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/mirror"
	"github.com/GoCodeAlone/marketplace/observability"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
	"github.com/GoCodeAlone/marketplace/plugin"
	"github.com/GoCodeAlone/marketplace/transport"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithHost replaces the host environment.
func WithHost(h *host.Host) Option {
	return func(s *Service) { s.host = h }
}

// WithConfigStore replaces the file-backed config store.
func WithConfigStore(store config.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRegistry replaces the directory-scanning installed registry.
func WithRegistry(r plugin.InstalledRegistry) Option {
	return func(s *Service) { s.registry = r }
}

// Service is the caller-facing operation surface.
type Service struct {
	logger     *slog.Logger
	httpClient *http.Client
	host       *host.Host
	store      config.Store
	registry   plugin.InstalledRegistry

	hostCfg   *config.HostConfig
	session   *config.Session
	metrics   *observability.Metrics
	client    *transport.Client
	catalog   *mirror.Catalog
	lifecycle *plugin.Lifecycle
	list      *catalog.Controller
	presenter *catalog.Presenter
	journal   *journal.SQLiteJournal
	redis     *cache.Redis
	watcher   *config.Watcher
}

// New wires a Service from hc. Redis and the journal are only opened when
// configured; a Redis that cannot be reached is an error.
func New(ctx context.Context, hc *config.HostConfig, opts ...Option) (*Service, error) {
	if hc == nil {
		hc = config.DefaultHostConfig()
	}
	s := &Service{hostCfg: hc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.host == nil {
		s.host = host.New(host.WithLogger(s.logger))
	}
	if s.store == nil {
		s.store = config.NewFileStore(hc.Paths.Config, hc.ConfigKey, s.logger)
	}
	if s.registry == nil {
		s.registry = plugin.NewDirectoryRegistry(hc.Paths.Plugins, hc.Paths.Builtins, hc.Paths.Data, s.logger)
	}
	endpoints := hc.Endpoints.WithDefaults()

	s.metrics = observability.NewMetrics(observability.DefaultMetricsConfig())
	tracer := tracing.NewOperationTracer(nil)

	var responses cache.Store = cache.NewMemory(hc.Cache)
	if hc.Redis.Address != "" {
		r, err := cache.DialRedis(ctx, hc.Redis)
		if err != nil {
			return nil, err
		}
		s.redis = r
		responses = r
	}

	clientOpts := []transport.Option{
		transport.WithCache(responses),
		transport.WithLogger(s.logger),
	}
	if hc.MaxRedirects > 0 {
		clientOpts = append(clientOpts, transport.WithMaxRedirects(hc.MaxRedirects))
	}
	if hc.RateLimit > 0 {
		clientOpts = append(clientOpts, transport.WithRateLimit(rate.Limit(hc.RateLimit), max(1, int(hc.RateLimit))))
	}
	switch {
	case s.httpClient != nil:
		clientOpts = append(clientOpts, transport.WithHTTPClient(s.httpClient))
	case hc.Timeout > 0:
		clientOpts = append(clientOpts, transport.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   hc.Timeout,
		}))
	}
	s.client = transport.New(clientOpts...)

	mirrorOpts := []mirror.Option{
		mirror.WithLogger(s.logger),
		mirror.WithMetrics(s.metrics),
		mirror.WithTracer(tracer),
		mirror.WithConcurrency(hc.Concurrency),
	}
	fetch := s.client.Cached()
	s.catalog = &mirror.Catalog{
		Aggregator: mirror.NewAggregator(fetch, mirrorOpts...),
		Resolver:   mirror.NewResolver(fetch, endpoints, mirrorOpts...),
		Metrics:    s.metrics,
	}

	pluginOpts := []plugin.Option{
		plugin.WithLogger(s.logger),
		plugin.WithMetrics(s.metrics),
		plugin.WithTracer(tracer),
		plugin.WithEndpoints(endpoints),
	}
	if hc.Journal != "" {
		j, err := journal.Open(hc.Journal)
		if err != nil {
			s.closeBackends()
			return nil, err
		}
		s.journal = j
		pluginOpts = append(pluginOpts, plugin.WithJournal(j))
	}
	roots := plugin.Roots{
		PluginsCache: hc.Paths.PluginsCache,
		Plugins:      hc.Paths.Plugins,
		Builtins:     hc.Paths.Builtins,
		Data:         hc.Paths.Data,
	}
	s.lifecycle = plugin.NewLifecycle(
		plugin.NewInstaller(s.client, roots, pluginOpts...),
		plugin.NewRemover(s.registry, pluginOpts...),
		pluginOpts...,
	)

	s.session = config.NewSession(s.store, s.logger)
	s.presenter = &catalog.Presenter{Endpoints: endpoints, Registry: s.registry}
	s.list = catalog.NewController(s.session, s.LoadCatalog,
		catalog.WithLogger(s.logger),
		catalog.WithPresenter(s.presenter),
		catalog.WithOnlineCheck(s.host.IsOnline),
	)
	return s, nil
}

// LoadCatalog merges the configured mirror lists and resolves every entry.
// It satisfies catalog.Loader.
func (s *Service) LoadCatalog(ctx context.Context) ([]*manifest.Manifest, error) {
	return s.catalog.Load(ctx, s.session.Get().MirrorList), nil
}

// GetConfig returns the session configuration.
func (s *Service) GetConfig() config.Config { return s.session.Get() }

// SetConfig replaces and persists the session configuration. The new value
// applies even when persisting fails.
func (s *Service) SetConfig(cfg config.Config) error { return s.session.Set(cfg) }

// Install downloads and extracts m.
func (s *Service) Install(ctx context.Context, m *manifest.Manifest) plugin.Result {
	return s.lifecycle.Install(ctx, m)
}

// Uninstall removes every path m owns.
func (s *Service) Uninstall(ctx context.Context, m *manifest.Manifest) plugin.Result {
	return s.lifecycle.Uninstall(ctx, m)
}

// Update replaces the plugin directory of m with a fresh install.
func (s *Service) Update(ctx context.Context, m *manifest.Manifest) plugin.Result {
	return s.lifecycle.Update(ctx, m)
}

// Restart relaunches the process and exits.
func (s *Service) Restart() error { return s.host.Restart() }

// IsOnline reports network reachability.
func (s *Service) IsOnline(ctx context.Context) bool { return s.host.IsOnline(ctx) }

// OpenExternal opens url in the system browser without waiting.
func (s *Service) OpenExternal(url string) { s.host.OpenExternal(url) }

// Catalog returns the session's list controller.
func (s *Service) Catalog() *catalog.Controller { return s.list }

// Presenter returns the row builder the list controller uses.
func (s *Service) Presenter() *catalog.Presenter { return s.presenter }

// Lifecycle returns the operation orchestrator, e.g. to subscribe to results.
func (s *Service) Lifecycle() *plugin.Lifecycle { return s.lifecycle }

// Metrics returns the Prometheus collector.
func (s *Service) Metrics() *observability.Metrics { return s.metrics }

// Registry returns the installed-plugin registry.
func (s *Service) Registry() plugin.InstalledRegistry { return s.registry }

// Journal returns the operation history, or nil when disabled.
func (s *Service) Journal() *journal.SQLiteJournal { return s.journal }

// Endpoints returns the resolved base URLs.
func (s *Service) Endpoints() manifest.Endpoints { return s.hostCfg.Endpoints.WithDefaults() }

// WatchConfig reloads the configuration into the list controller whenever
// the config file changes on disk. Only file-backed stores can be watched.
func (s *Service) WatchConfig() error {
	fs, ok := s.store.(*config.FileStore)
	if !ok {
		return errors.New("marketplace: config store is not file backed")
	}
	if s.watcher != nil {
		return nil
	}
	w := config.NewWatcher(fs, s.list.ApplyConfig, config.WithWatchLogger(s.logger))
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	s.watcher = w
	return nil
}

// Close stops the watcher and releases the journal and Redis connections.
func (s *Service) Close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Stop())
	}
	errs = append(errs, s.closeBackends())
	return errors.Join(errs...)
}

func (s *Service) closeBackends() error {
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
