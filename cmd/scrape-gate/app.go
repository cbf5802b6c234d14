package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/export"
	"scrape-gate/pkg/genai"
	"scrape-gate/pkg/metrics"
	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/session"
	"scrape-gate/pkg/storage"
)

// newBackend is replaced in tests.
var newBackend = genai.NewBackend

// app is the component graph shared by every long-running command.
type app struct {
	cfg     *config.AppConfig
	backend *genai.Backend
	proc    *pipeline.Processor
	orch    *session.Orchestrator
	manager *session.Manager
	store   *session.Store
	archive *storage.BadgerArchive // nil unless enable_history
	stopGC  context.CancelFunc
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// newApp wires backend, pipeline, orchestrator and (optionally) the history
// archive. ctx bounds background work such as archive GC.
func newApp(ctx context.Context, appCfg *config.AppConfig, apiKey string, logger *logrus.Logger) (*app, error) {
	a := &app{
		cfg:     appCfg,
		metrics: metrics.New(),
		log:     logger.WithField("component", "app"),
	}

	prompts, err := pipeline.LoadPrompts(appCfg.Prompts)
	if err != nil {
		return nil, err
	}
	counter, err := export.NewTokenCounter(appCfg.TokenizerEncoding)
	if err != nil {
		return nil, err
	}

	a.backend, err = newBackend(ctx, *appCfg, apiKey, logger.WithField("component", "genai"))
	if err != nil {
		return nil, err
	}

	a.proc = pipeline.New(a.backend, pipeline.Options{
		Prompts:     prompts,
		Cleaner:     pipeline.NewCleaner(appCfg.TextCleanup),
		CountTokens: counter.Count,
		Metrics:     a.metrics,
	}, logger.WithField("component", "pipeline"))

	a.orch = session.NewOrchestrator(a.proc, appCfg.MaxConcurrency, a.metrics, logger.WithField("component", "session"))
	a.manager = session.NewManager(appCfg.MaxRetainedBatches)
	a.store = session.NewStore(a.orch, a.manager)

	if appCfg.EnableHistory {
		a.archive, err = storage.NewBadgerArchive(appCfg.StateDir, logger.WithField("component", "history"))
		if err != nil {
			a.close()
			return nil, err
		}
		gcCtx, stopGC := context.WithCancel(ctx)
		a.stopGC = stopGC
		go a.archive.RunGC(gcCtx, appCfg.DBGCInterval)
		a.orch.OnFinish(func(b *session.Batch) {
			if err := a.archive.SaveBatch(b.Record()); err != nil {
				a.log.WithField("batch", b.ID).Errorf("Failed to archive batch: %v", err)
			}
		})
	}

	a.log.Infof("Using %s model %s", a.backend.Provider, a.backend.Model)
	return a, nil
}

// loadSchema reads and compiles an output schema file ("" means none).
func loadSchema(path string) (*pipeline.OutputSchema, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return pipeline.CompileOutputSchema(string(data))
}

func (a *app) close() {
	if a.stopGC != nil {
		a.stopGC()
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Errorf("Error closing history archive: %v", err)
		}
	}
	if err := a.backend.Close(); err != nil {
		a.log.Warnf("Error closing backend: %v", err)
	}
}
