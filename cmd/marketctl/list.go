package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
)

// viewFlags override the stored view preferences for one command.
type viewFlags struct {
	typ, scope, strategy, direction, columns, density string
}

func addViewFlags(fs *flag.FlagSet) *viewFlags {
	v := &viewFlags{}
	fs.StringVar(&v.typ, "type", "", "Plugin type filter: all, core, extension, theme, framework")
	fs.StringVar(&v.scope, "scope", "", "Platform scope: all, current, win32, linux, darwin")
	fs.StringVar(&v.strategy, "sort", "", "Sort strategy: random, sequence")
	fs.StringVar(&v.direction, "direction", "", "Sort direction: forward, reverse")
	fs.StringVar(&v.columns, "columns", "", "List columns: single, double")
	fs.StringVar(&v.density, "density", "", "List density: loose, compact")
	return v
}

// apply overlays the non-empty flags onto cfg and validates the result.
func (v *viewFlags) apply(cfg config.Config) (config.Config, error) {
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	set(&cfg.PluginType[0], v.typ)
	set(&cfg.PluginType[1], v.scope)
	set(&cfg.SortOrder[0], v.strategy)
	set(&cfg.SortOrder[1], v.direction)
	set(&cfg.ListStyle[0], v.columns)
	set(&cfg.ListStyle[1], v.density)
	return cfg, cfg.Validate()
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	g := addGlobalFlags(fs)
	view := addViewFlags(fs)
	search := fs.String("search", "", "Case-insensitive search over plugin names")
	page := fs.Int("page", 1, "Page number")
	save := fs.Bool("save", false, "Persist the view flags as the new defaults")
	asJSON := fs.Bool("json", false, "Print the page as JSON")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl list [options]\n\nShow one page of the catalog.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, hc, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx, cancel := commandContext(hc)
	defer cancel()

	cfg, err := view.apply(svc.GetConfig())
	if err != nil {
		return err
	}
	if *save {
		if err := svc.SetConfig(cfg); err != nil {
			return fmt.Errorf("save view: %w", err)
		}
	}

	// A private session keeps one-off flags out of the stored settings.
	session := config.NewSession(config.NewMemoryStore(&cfg), g.logger())
	ctrl := catalog.NewController(session, svc.LoadCatalog,
		catalog.WithLogger(g.logger()),
		catalog.WithPresenter(svc.Presenter()),
		catalog.WithOnlineCheck(svc.IsOnline),
	)
	if err := loadCatalog(ctx, ctrl); err != nil {
		return err
	}
	ctrl.SetSearch(*search)
	if *page != 1 && !ctrl.GoTo(*page) {
		return fmt.Errorf("page %d is out of range (1-%d)", *page, ctrl.Snapshot().Page.Total)
	}

	snap := ctrl.Snapshot()
	if *asJSON {
		return writeJSON(os.Stdout, snap)
	}
	renderPage(os.Stdout, snap)
	return nil
}

// renderPage prints a snapshot as a table. Loose density adds the
// description and author under each row.
func renderPage(w io.Writer, snap catalog.Snapshot) {
	if snap.State == catalog.StateError {
		fmt.Fprintf(w, "catalog error: %s\n", snap.Error)
		return
	}
	if snap.Page.Matched == 0 {
		fmt.Fprintln(w, "No plugins match.")
		return
	}
	loose := snap.Config.ListStyle[1] != config.DensityCompact
	fmt.Fprintf(w, "%-24s %-10s %-10s %-14s %s\n", "SLUG", "VERSION", "TYPE", "STATUS", "PLATFORMS")
	for _, item := range snap.Page.Items {
		m := item.Manifest
		fmt.Fprintf(w, "%-24s %-10s %-10s %-14s %s\n", m.Slug, m.Version, item.TypeLabel, item.Status, item.PlatformText())
		if loose {
			if m.Description != "" {
				fmt.Fprintf(w, "    %s\n", oneLine(m.Description))
			}
			if item.Author.Name != "" {
				fmt.Fprintf(w, "    by %s\n", item.Author.Name)
			}
		}
	}
	fmt.Fprintf(w, "\nPage %d/%d, %d matched\n", snap.Page.Number, snap.Page.Total, snap.Page.Matched)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
