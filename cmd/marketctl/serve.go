package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/marketplace"
	"github.com/GoCodeAlone/marketplace/api"
	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
	"github.com/GoCodeAlone/marketplace/plugin"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	g := addGlobalFlags(fs)
	listen := fs.String("listen", "", "Listen address (overrides the host config)")
	opRate := fs.Int("op-rate", 30, "Plugin operations per minute per client")
	watch := fs.Bool("watch", true, "Reload settings when the settings file changes")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl serve [options]\n\nServe the local HTTP bridge.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hc, err := g.hostConfigOrDefault()
	if err != nil {
		return err
	}
	if *listen != "" {
		hc.Listen = *listen
	}
	logger := g.logger()

	if hc.Tracing.ServiceVersion == "" {
		hc.Tracing.ServiceVersion = version
	}
	provider, err := tracing.NewProvider(ctx, hc.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "err", err)
		}
	}()

	svc, err := marketplace.New(ctx, hc, marketplace.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	hub := api.NewHub(logger)
	bridge(svc.Catalog(), svc.Lifecycle(), hub)
	if *watch {
		if err := svc.WatchConfig(); err != nil {
			logger.Warn("settings watch disabled", "err", err)
		}
	}

	deps := api.Deps{
		Service: svc,
		Catalog: svc.Catalog(),
		Hub:     hub,
		Metrics: svc.Metrics(),
		Logger:  logger,
	}
	if j := svc.Journal(); j != nil {
		deps.History = j
	}
	router := api.NewRouter(deps, api.Config{OpRateLimit: *opRate})
	defer router.Stop()

	server := &http.Server{
		Addr:              hc.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := svc.Catalog().Load(ctx); err != nil && !errors.Is(err, catalog.ErrStale) {
			logger.Warn("initial catalog load failed", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bridge listening", "addr", hc.Listen)
		fmt.Printf("marketctl serving on http://%s\n", hc.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("Shutdown complete")
	return nil
}

// resultSource reports finished plugin operations.
type resultSource interface {
	OnResult(fn func(plugin.Event))
}

// bridge forwards controller renders, state changes and operation results
// to the event stream.
func bridge(ctrl *catalog.Controller, results resultSource, hub *api.Hub) {
	ctrl.OnState(func(s catalog.State) { hub.Publish("state", s) })
	ctrl.OnRender(func(snap catalog.Snapshot) { hub.Publish("render", snap) })
	results.OnResult(func(e plugin.Event) {
		hub.Publish("result", e)
		// Installed status changed; the user stays on the same page.
		ctrl.Rerender()
	})
}
