package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/GoCodeAlone/marketplace/config"
)

// setting maps a command-line key to one field of the session config.
type setting struct {
	get func(config.Config) string
	set func(*config.Config, string)
}

var settings = map[string]setting{
	"mirrorlist": {
		get: func(c config.Config) string { return strings.Join(c.MirrorList, ",") },
		set: func(c *config.Config, v string) { c.MirrorList = splitList(v) },
	},
	"type": {
		get: func(c config.Config) string { return c.PluginType[0] },
		set: func(c *config.Config, v string) { c.PluginType[0] = v },
	},
	"scope": {
		get: func(c config.Config) string { return c.PluginType[1] },
		set: func(c *config.Config, v string) { c.PluginType[1] = v },
	},
	"sort": {
		get: func(c config.Config) string { return c.SortOrder[0] },
		set: func(c *config.Config, v string) { c.SortOrder[0] = v },
	},
	"direction": {
		get: func(c config.Config) string { return c.SortOrder[1] },
		set: func(c *config.Config, v string) { c.SortOrder[1] = v },
	},
	"columns": {
		get: func(c config.Config) string { return c.ListStyle[0] },
		set: func(c *config.Config, v string) { c.ListStyle[0] = v },
	},
	"density": {
		get: func(c config.Config) string { return c.ListStyle[1] },
		set: func(c *config.Config, v string) { c.ListStyle[1] = v },
	},
}

func settingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applySettings parses key=value pairs onto cfg and validates the result.
func applySettings(cfg config.Config, pairs []string) (config.Config, error) {
	cfg = cfg.Clone()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return cfg, fmt.Errorf("expected key=value, got %q", pair)
		}
		s, ok := settings[strings.TrimSpace(key)]
		if !ok {
			return cfg, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(settingKeys(), ", "))
		}
		s.set(&cfg, strings.TrimSpace(value))
	}
	return cfg, cfg.Validate()
}

func runConfig(args []string) error {
	if len(args) < 1 {
		return configUsage()
	}
	switch args[0] {
	case "get":
		return runConfigGet(args[1:])
	case "set":
		return runConfigSet(args[1:])
	case "path":
		return runConfigPath(args[1:])
	default:
		return configUsage()
	}
}

func configUsage() error {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: marketctl config <subcommand> [options]

Subcommands:
  get    Print the settings, or a single key
  set    Change settings: marketctl config set key=value...
  path   Print the settings file location

Keys: %s
`, strings.Join(settingKeys(), ", "))
	return fmt.Errorf("config subcommand is required")
}

func openStore(g *globalFlags) (*config.FileStore, error) {
	hc, err := g.hostConfigOrDefault()
	if err != nil {
		return nil, err
	}
	return config.NewFileStore(hc.Paths.Config, hc.ConfigKey, g.logger()), nil
}

func runConfigGet(args []string) error {
	fs := flag.NewFlagSet("config get", flag.ExitOnError)
	g := addGlobalFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := openStore(g)
	if err != nil {
		return err
	}
	cfg := store.Load()
	if fs.NArg() == 0 {
		return writeJSON(os.Stdout, cfg)
	}
	s, ok := settings[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown setting %q", fs.Arg(0))
	}
	fmt.Println(s.get(cfg))
	return nil
}

func runConfigSet(args []string) error {
	fs := flag.NewFlagSet("config set", flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl config set [options] key=value...\n\nKeys: %s\n\nOptions:\n", strings.Join(settingKeys(), ", "))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("at least one key=value is required")
	}
	store, err := openStore(g)
	if err != nil {
		return err
	}
	cfg, err := applySettings(store.Load(), fs.Args())
	if err != nil {
		return err
	}
	if err := store.Save(cfg); err != nil {
		return err
	}
	return writeJSON(os.Stdout, cfg)
}

func runConfigPath(args []string) error {
	fs := flag.NewFlagSet("config path", flag.ExitOnError)
	g := addGlobalFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := openStore(g)
	if err != nil {
		return err
	}
	fmt.Println(store.Path())
	return nil
}
