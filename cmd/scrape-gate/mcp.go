package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/mcp"
)

type mcpOptions struct {
	configPath string
	logLevel   string
	transport  string
	port       int
	apiKey     string
}

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ContinueOnError)
	var opts mcpOptions
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file (optional)")
	fs.StringVar(&opts.transport, "transport", "stdio", "Transport type (stdio, sse)")
	fs.IntVar(&opts.port, "port", 8080, "HTTP port (for sse transport)")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key (overrides the environment variable named by api_key_env)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: scrape-gate mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport (for desktop assistants)
  scrape-gate mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  scrape-gate mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  process_urls   Check and process a list of URLs as a new batch
  get_batch      Batch status and results
  get_result     One result with display text and filename
  cancel_batch   Cancel a running batch
  list_batches   List session and archived batches
`)
	}

	ok, code := parseFlags(fs, args)
	if !ok {
		os.Exit(code)
	}

	// MCP protocol uses stdout, logs go to stderr
	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log)
	code = doMcpServer(ctx, opts, os.Stderr)
	stop()
	os.Exit(code)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(ctx context.Context, opts mcpOptions, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)

	appCfg, err := loadAndValidateConfig(opts.configPath, true, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
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

	batchCtx, cancelBatches := context.WithCancel(context.Background())
	defer cancelBatches()

	serverCfg := &mcp.ServerConfig{
		Transport: opts.transport,
		Port:      opts.port,
		Logger:    log,
		Store:     a.store,
		Manager:   a.manager,
		Processor: a.proc,
		BaseCtx:   batchCtx,
	}
	if a.archive != nil {
		serverCfg.Archive = a.archive
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", opts.transport)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(stderr, "MCP server error: %v\n", err)
			exitCode = 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP shutdown: %v", err)
	}
	if err := a.manager.WaitAll(shutdownCtx); err != nil {
		log.Warnf("Batches still running at shutdown: %v", err)
	}
	return exitCode
}
