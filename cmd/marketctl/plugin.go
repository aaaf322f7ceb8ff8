package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/marketplace"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
)

func runInstall(args []string) error {
	return runOperation(plugin.OpInstall, "Install a plugin from the catalog.", args)
}

func runUninstall(args []string) error {
	return runOperation(plugin.OpUninstall, "Remove an installed plugin, its data and cached archive.", args)
}

func runUpdate(args []string) error {
	return runOperation(plugin.OpUpdate, "Reinstall a plugin from the catalog. Its data directory is kept.", args)
}

func runOperation(op, help string, args []string) error {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl %s [options] <slug>...\n\n%s\n\nOptions:\n", op, help)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("plugin slug is required")
	}

	svc, hc, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx, cancel := commandContext(hc)
	defer cancel()

	if err := loadCatalog(ctx, svc.Catalog()); err != nil {
		return err
	}
	var failed int
	for _, slug := range fs.Args() {
		m, ok := svc.Catalog().Find(slug)
		if !ok {
			fmt.Printf("%-24s not in the catalog\n", slug)
			failed++
			continue
		}
		res := operate(ctx, svc, op, m)
		if res.OK() {
			fmt.Printf("%-24s %s ok (%s)\n", slug, op, m.Version)
			continue
		}
		fmt.Printf("%-24s %s failed: %s\n", slug, op, res)
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %s operations failed", failed, fs.NArg(), op)
	}
	return nil
}

func operate(ctx context.Context, svc *marketplace.Service, op string, m *manifest.Manifest) plugin.Result {
	switch op {
	case plugin.OpUninstall:
		return svc.Uninstall(ctx, m)
	case plugin.OpUpdate:
		return svc.Update(ctx, m)
	default:
		return svc.Install(ctx, m)
	}
}
