package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"scrape-gate/pkg/api"
	"scrape-gate/pkg/config"
)

const shutdownTimeout = 15 * time.Second

type serveOptions struct {
	configPath string
	logLevel   string
	addr       string
	apiKey     string
}

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var opts serveOptions
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file (optional)")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.addr, "addr", "", "Listen address (overrides server.addr)")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key (overrides the environment variable named by api_key_env)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scrape-gate serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Endpoints:
  POST   /api/batches                            Submit URLs (starts a new current batch)
  GET    /api/batches                            List batches
  GET    /api/batches/current                    Current batch
  GET    /api/batches/{id}                       Batch status and results
  DELETE /api/batches/{id}                       Cancel a batch
  GET    /api/batches/{id}/results/{i}           One result with display text
  GET    /api/batches/{id}/results/{i}/download  Download a ready result
  POST   /api/import                             Read URL text (or ?format=feed)
  GET    /api/health, /metrics
`)
	}

	ok, code := parseFlags(fs, args)
	if !ok {
		os.Exit(code)
	}

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	code = doServe(ctx, opts, os.Stderr)
	stop()
	os.Exit(code)
}

// doServe runs the HTTP API until ctx is cancelled.
func doServe(ctx context.Context, opts serveOptions, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)
	startTime := time.Now()

	appCfg, err := loadAndValidateConfig(opts.configPath, true, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.addr != "" {
		appCfg.Server.Addr = opts.addr
	}
	logAppConfig(appCfg, log)

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

	// Batches are parented here rather than on a request.
	batchCtx, cancelBatches := context.WithCancel(context.Background())
	defer cancelBatches()

	srv := api.NewServer(batchCtx, appCfg.Server.Addr, a.store, a.manager, a.proc, a.metrics,
		log.WithField("component", "api"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("HTTP server error: %v", err)
			exitCode = 1
		}
	case <-ctx.Done():
		log.Info("Shutting down HTTP API...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	a.manager.CancelAll()
	if err := a.manager.WaitAll(shutdownCtx); err != nil {
		log.Warnf("Batches still running at shutdown: %v", err)
	}

	log.Info("==================== Server Summary ====================")
	log.Infof("Uptime: %v, Batches retained: %d", time.Since(startTime).Round(time.Second), len(a.manager.List()))
	log.Info("========================================================")
	return exitCode
}
