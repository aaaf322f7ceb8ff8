package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GoCodeAlone/marketplace/journal"
)

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	g := addGlobalFlags(fs)
	slug := fs.String("slug", "", "Only show operations on this plugin")
	limit := fs.Int("limit", 20, "Maximum number of entries")
	asJSON := fs.Bool("json", false, "Print entries as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hc, err := g.hostConfigOrDefault()
	if err != nil {
		return err
	}
	if hc.Journal == "" {
		return fmt.Errorf("history is disabled: no journal configured")
	}
	j, err := journal.Open(hc.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := context.Background()
	var entries []journal.Entry
	if *slug != "" {
		entries, err = j.ForSlug(ctx, *slug, *limit)
	} else {
		entries, err = j.Recent(ctx, *limit)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(os.Stdout, entries)
	}
	renderHistory(os.Stdout, entries)
	return nil
}

func renderHistory(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	fmt.Fprintf(w, "%-19s %-10s %-24s %-10s %-16s %s\n", "STARTED", "OPERATION", "SLUG", "VERSION", "RESULT", "DURATION")
	for _, e := range entries {
		result := e.Result
		if e.Error != "" {
			result += " (" + e.Error + ")"
		}
		fmt.Fprintf(w, "%-19s %-10s %-24s %-10s %-16s %s\n",
			formatTime(e.StartedAt), e.Operation, e.Slug, e.Version, result, e.Duration().Round(time.Millisecond))
	}
}
