package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/GoCodeAlone/marketplace"
	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/manifest"
)

// globalFlags are accepted by every command that talks to the marketplace.
type globalFlags struct {
	hostConfig string
	verbose    bool
}

func addGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.hostConfig, "config", "", "Host config file (default: .marketctl.yaml, then ~/.config/marketctl/config.yaml)")
	fs.BoolVar(&g.verbose, "v", false, "Verbose logging")
	return g
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *globalFlags) hostConfigOrDefault() (*config.HostConfig, error) {
	return config.LoadHostConfig(g.hostConfig)
}

// open builds a Service from the host config. The caller closes it.
func (g *globalFlags) open(ctx context.Context) (*marketplace.Service, *config.HostConfig, error) {
	hc, err := g.hostConfigOrDefault()
	if err != nil {
		return nil, nil, err
	}
	svc, err := marketplace.New(ctx, hc, marketplace.WithLogger(g.logger()))
	if err != nil {
		return nil, nil, err
	}
	return svc, hc, nil
}

// commandContext bounds a one-shot command by the host config timeout.
func commandContext(hc *config.HostConfig) (context.Context, context.CancelFunc) {
	if hc != nil && hc.Timeout > 0 {
		return context.WithTimeout(context.Background(), hc.Timeout)
	}
	return context.WithCancel(context.Background())
}

// loadCatalog fetches the catalog and fails when the host is offline or
// the load errored.
func loadCatalog(ctx context.Context, ctrl *catalog.Controller) error {
	if err := ctrl.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if ctrl.State() == catalog.StateOffline {
		return fmt.Errorf("load catalog: host is offline")
	}
	return nil
}

// findPlugin loads the catalog and looks slug up in it.
func findPlugin(ctx context.Context, ctrl *catalog.Controller, slug string) (*manifest.Manifest, error) {
	if err := loadCatalog(ctx, ctrl); err != nil {
		return nil, err
	}
	m, ok := ctrl.Find(slug)
	if !ok {
		return nil, fmt.Errorf("plugin %q is not in the catalog", slug)
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
