package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scrape-gate/pkg/export"
	"scrape-gate/pkg/render"
	"scrape-gate/pkg/session"
	"scrape-gate/pkg/storage"
	"scrape-gate/pkg/utils"
)

type historyOptions struct {
	configPath string
	logLevel   string
	limit      int
	format     string
	id         string
	exportDir  string
}

// runHistory handles the history subcommand
func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var opts historyOptions
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file (optional)")
	fs.StringVar(&opts.logLevel, "loglevel", "warn", "Log level (debug, info, warn, error)")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of batches to list (0 = all)")
	fs.StringVar(&opts.format, "format", render.FormatTable, "Output format: table, json or yaml")
	fs.StringVar(&opts.id, "id", "", "Show the results of a single batch")
	fs.StringVar(&opts.exportDir, "export-dir", "", "With -id, write the batch's ready results here")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scrape-gate history [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	ok, code := parseFlags(fs, args)
	if !ok {
		os.Exit(code)
	}
	os.Exit(doHistory(opts, os.Stdout, os.Stderr))
}

// doHistory reads the batch archive under the configured state directory.
func doHistory(opts historyOptions, stdout, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)

	appCfg, err := loadAndValidateConfig(opts.configPath, true, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !appCfg.EnableHistory {
		log.Warn("enable_history is off; only batches from earlier runs with it on are listed")
	}

	renderer, err := render.NewRenderer(stdout, opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	archive, err := storage.NewBadgerArchive(appCfg.StateDir, log.WithField("component", "history"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer archive.Close()

	if opts.id == "" {
		records, err := archive.ListBatches(opts.limit)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := renderer.History(records); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	rec, err := archive.GetBatch(opts.id)
	if err != nil {
		if errors.Is(err, utils.ErrBatchNotFound) {
			fmt.Fprintf(stderr, "Error: batch '%s' not found\n", opts.id)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	if err := renderer.Summary(session.SnapshotFromRecord(*rec)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.exportDir != "" {
		dir := filepath.Join(opts.exportDir, export.BatchDirName(*rec))
		paths, err := export.WriteResults(dir, rec.Results)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Exported %d result(s) to %s\n", len(paths), dir)
	}
	return 0
}
