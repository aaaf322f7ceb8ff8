package main

import (
	"fmt"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"list":      runList,
	"install":   runInstall,
	"uninstall": runUninstall,
	"update":    runUpdate,
	"config":    runConfig,
	"history":   runHistory,
	"serve":     runServe,
	"browse":    runBrowse,
	"restart":   runRestart,
	"open":      runOpen,
}

func usage() {
	fmt.Fprintf(os.Stderr, `marketctl - plugin marketplace client (version %s)

Usage:
  marketctl <command> [options]

Commands:
  list       Show one page of the catalog (filters, sort and search)
  install    Install a plugin from the catalog
  uninstall  Remove an installed plugin and its data
  update     Reinstall a plugin from the catalog, keeping its data
  config     Show or change the marketplace settings (get, set)
  history    List recorded install, uninstall and update operations
  serve      Serve the local HTTP bridge and event stream
  browse     Browse the catalog interactively
  restart    Relaunch marketctl with the same arguments
  open       Open a URL in the system browser

Run 'marketctl <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd) //nolint:gosec // G705: CLI error output
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err) //nolint:gosec // G705: CLI error output
		os.Exit(1)
	}
}
