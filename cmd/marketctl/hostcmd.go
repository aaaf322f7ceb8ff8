package main

import (
	"flag"
	"fmt"

	"github.com/GoCodeAlone/marketplace/host"
)

func runRestart(args []string) error {
	fs := flag.NewFlagSet("restart", flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl restart [-- args...]\n\nRelaunch marketctl detached with the given arguments and exit.\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("a command to relaunch is required, e.g. marketctl restart -- serve")
	}
	h := host.New(host.WithLogger(g.logger()), host.WithArgs(fs.Args()))
	return h.Restart()
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: marketctl open <url>\n\nOpen an http or https URL in the system browser.\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("exactly one url is required")
	}
	host.New(host.WithLogger(g.logger())).OpenExternal(fs.Arg(0))
	return nil
}
