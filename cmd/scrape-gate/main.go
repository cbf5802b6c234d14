package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/utils"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		fmt.Printf("scrape-gate %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `scrape-gate - Copyright-aware URL content extraction

Usage:
  scrape-gate <command> [options]

Commands:
  run         Process a list of URLs and print the results
  serve       Start the HTTP API
  mcp-server  Start MCP server for AI tool integration
  validate    Validate configuration file
  history     List archived batches
  version     Show version info

Run 'scrape-gate <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. With allowMissing a file
// that does not exist yields the zero config, so defaults apply.
func loadConfig(path string, allowMissing bool) (*config.AppConfig, error) {
	var cfg config.AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w: %w", utils.ErrParsing, err)
	}
	return &cfg, nil
}

// loadAndValidateConfig loads the config, logs warnings and applies defaults.
func loadAndValidateConfig(path string, allowMissing bool, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path, allowMissing)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// setupLogger builds the process logger. Logs always go to out so stdout
// stays free for results and protocol traffic.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Backend: Provider:%s, Model:%s, CredentialEnv:%s, MaxTokens:%d, Temperature:%.2f",
		appCfg.Provider, appCfg.Model, config.GetEffectiveAPIKeyEnv(*appCfg), appCfg.MaxTokens, appCfg.Temperature)
	log.Infof("Backend Limits: Timeout:%v, MaxRetries:%d, Delay:%v..%v, MaxInflight:%d, MinInterval:%v",
		appCfg.RequestTimeout, appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay,
		appCfg.MaxInflightRequests, appCfg.MinRequestInterval)
	log.Infof("Batches: MaxConcurrency:%d, DefaultMode:%s, StripHTML:%t, StripMarkdown:%t, Tokenizer:%s",
		appCfg.MaxConcurrency, appCfg.DefaultMode, appCfg.TextCleanup.StripHTML, appCfg.TextCleanup.StripMarkdown,
		appCfg.TokenizerEncoding)
	log.Debugf("History: Enabled:%t, StateDir:%s, GC:%v, MaxRetained:%d",
		appCfg.EnableHistory, appCfg.StateDir, appCfg.DBGCInterval, appCfg.MaxRetainedBatches)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal, or the grace period running out, forces exit.
func signalContext(log *logrus.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// parseFlags parses args, reporting -h as a clean exit.
func parseFlags(set *flag.FlagSet, args []string) (ok bool, code int) {
	if err := set.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, 0
		}
		return false, 2
	}
	return true, 0
}
