package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/export"
	"scrape-gate/pkg/input"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/render"
	"scrape-gate/pkg/session"
)

// runOptions holds the parsed flags of the run subcommand.
type runOptions struct {
	configPath string
	logLevel   string
	file       string
	feed       string
	mode       string
	prompt     string
	schemaPath string
	exportDir  string
	format     string
	apiKey     string
	urls       []string // positional arguments
}

// runRun handles the run subcommand
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var opts runOptions
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file (optional for run)")
	fs.StringVar(&opts.logLevel, "loglevel", "warn", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.file, "file", "", "Read newline-separated URLs from a text file")
	fs.StringVar(&opts.feed, "feed", "", "Read item links from an RSS/Atom feed file")
	fs.StringVar(&opts.mode, "mode", "", "Output mode: text or json (default from config, else text)")
	fs.StringVar(&opts.prompt, "prompt", "", "Extraction request for json mode")
	fs.StringVar(&opts.schemaPath, "schema", "", "JSON Schema file that json-mode output must satisfy")
	fs.StringVar(&opts.exportDir, "export-dir", "", "Write every ready result to a per-batch folder here")
	fs.StringVar(&opts.format, "format", render.FormatTable, "Output format: table, json or yaml")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key (overrides the environment variable named by api_key_env)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scrape-gate run [options] [url ...]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nURLs come from positional arguments, -file, -feed, or stdin when none is given.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scrape-gate run https://example.com/post\n")
		fmt.Fprintf(os.Stderr, "  scrape-gate run -file urls.txt -mode json -prompt 'Extract the title'\n")
		fmt.Fprintf(os.Stderr, "  cat urls.txt | scrape-gate run -format json -export-dir ./out\n")
	}

	ok, code := parseFlags(fs, args)
	if !ok {
		os.Exit(code)
	}
	opts.urls = fs.Args()

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	code = doRun(ctx, opts, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// doRun is the testable body of the run subcommand. It returns 1 if
// startup fails or any URL ends in failure.
func doRun(ctx context.Context, opts runOptions, stdin io.Reader, stdout, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)

	appCfg, err := loadAndValidateConfig(opts.configPath, true, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logAppConfig(appCfg, log)

	modeStr := opts.mode
	if modeStr == "" {
		modeStr = appCfg.DefaultMode
	}
	mode, ok := models.ParseMode(modeStr)
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown mode %q (supported: text, json)\n", modeStr)
		return 1
	}
	prompt := opts.prompt
	if mode == models.ModeJSON && strings.TrimSpace(prompt) == "" {
		prompt = appCfg.DefaultExtractionPrompt
	}

	renderer, err := render.NewRenderer(stdout, opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	text, err := collectInput(opts, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(input.ParseURLList(text)) == 0 {
		fmt.Fprintln(stderr, "No URLs to process.")
		return 0
	}

	schema, err := loadSchema(opts.schemaPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	apiKey, err := config.ResolveAPIKey(*appCfg, opts.apiKey)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, appCfg, apiKey, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	sub := session.Submission{
		Input:            text,
		Mode:             mode,
		ExtractionPrompt: prompt,
		Observer:         renderer.Observe,
	}
	if schema != nil {
		sub.Processor = a.proc.WithSchema(schema)
	}

	// The batch gets its own context so an interrupt resolves pending rows
	// as cancelled instead of abandoning them.
	b, err := a.store.Submit(context.Background(), sub)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	select {
	case <-b.Done():
	case <-ctx.Done():
		b.Cancel()
		<-b.Done()
	}

	snap := b.Snapshot()
	if err := renderer.Summary(snap); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.exportDir != "" {
		dir := filepath.Join(opts.exportDir, export.BatchDirName(b.Record()))
		paths, err := export.WriteResults(dir, snap.Results)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Exported %d result(s) to %s\n", len(paths), dir)
	}

	if snap.Counts[models.StatusFailed] > 0 {
		return 1
	}
	return 0
}

// collectInput concatenates URL text from every source given. With no
// explicit source, stdin is read.
func collectInput(opts runOptions, stdin io.Reader) (string, error) {
	var parts []string
	if len(opts.urls) > 0 {
		parts = append(parts, input.JoinURLs(opts.urls))
	}
	if opts.file != "" {
		text, err := input.ReadFile(opts.file)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	if opts.feed != "" {
		urls, err := input.ReadFeedFile(opts.feed)
		if err != nil {
			return "", err
		}
		parts = append(parts, input.JoinURLs(urls))
	}
	if len(parts) == 0 && stdin != nil {
		text, err := input.ReadText(stdin)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
