package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"scrape-gate/pkg/input"
	"scrape-gate/pkg/metrics"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

// URLProcessor resolves one URL. *pipeline.Processor implements it.
type URLProcessor interface {
	Process(ctx context.Context, url string, mode models.ProcessingMode, extractionPrompt string) (models.UrlResult, error)
}

// Submission is one request to start a batch.
type Submission struct {
	Input            string // newline-separated URL list
	Mode             models.ProcessingMode
	ExtractionPrompt string
	Processor        URLProcessor // overrides the orchestrator's processor when set
	Observer         Observer
}

// Orchestrator fans a submission out into one task per URL slot.
type Orchestrator struct {
	proc           URLProcessor
	maxConcurrency int
	metrics        *metrics.Metrics
	onFinish       []func(*Batch)
	log            *logrus.Entry
}

// NewOrchestrator creates an orchestrator. maxConcurrency <= 0 runs every
// task of a batch at once.
func NewOrchestrator(proc URLProcessor, maxConcurrency int, m *metrics.Metrics, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		proc:           proc,
		maxConcurrency: maxConcurrency,
		metrics:        m,
		log:            log,
	}
}

// OnFinish registers a hook run after a batch's final event and before
// Wait returns. Register hooks before starting batches.
func (o *Orchestrator) OnFinish(fn func(*Batch)) {
	o.onFinish = append(o.onFinish, fn)
}

// Start parses the input and launches the batch. It returns as soon as the
// initial all-pending snapshot has been published. Empty input returns
// utils.ErrNoURLs and no batch.
//
// The batch context derives from ctx; cancelling ctx cancels the batch.
func (o *Orchestrator) Start(ctx context.Context, sub Submission) (*Batch, error) {
	urls := input.ParseURLList(sub.Input)
	if len(urls) == 0 {
		return nil, utils.ErrNoURLs
	}
	mode := sub.Mode
	if !mode.IsValid() {
		mode = models.ModeText
	}
	proc := sub.Processor
	if proc == nil {
		proc = o.proc
	}
	if proc == nil {
		return nil, fmt.Errorf("%w: no URL processor configured", utils.ErrConfigValidation)
	}

	b := newBatch(ctx, urls, mode, sub.ExtractionPrompt, sub.Observer)
	log := o.log.WithField("batch", b.ID)
	log.Infof("Starting batch of %d URLs (mode=%s)", len(urls), mode)

	b.publishInitial()
	o.metrics.BatchStarted()

	go o.run(b, proc, urls, log)
	return b, nil
}

func (o *Orchestrator) run(b *Batch, proc URLProcessor, urls []string, log *logrus.Entry) {
	startTime := time.Now()

	var g errgroup.Group
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}
	for i, u := range urls {
		g.Go(func() error {
			o.runTask(b, proc, i, u, log)
			return nil
		})
	}
	_ = g.Wait()

	b.finish()
	elapsed := time.Since(startTime)
	o.metrics.BatchFinished(elapsed)
	for _, fn := range o.onFinish {
		fn(b)
	}
	o.logSummary(b, elapsed, log)
	b.markDone()
}

// runTask resolves slot i. Every exit path resolves the slot exactly once.
func (o *Orchestrator) runTask(b *Batch, proc URLProcessor, i int, url string, log *logrus.Entry) {
	var result models.UrlResult
	defer func() {
		if r := recover(); r != nil {
			log.WithField("url", url).Errorf("Panic while processing URL: %v", r)
			result = models.NewFailedResult(url, utils.MsgUnknown, "")
		}
		if b.resolve(i, result) {
			o.metrics.ObserveResult(result.Status)
		}
	}()

	if b.ctx.Err() != nil {
		result = models.NewFailedResult(url, utils.MsgCancelled, "")
		return
	}

	res, err := proc.Process(b.ctx, url, b.Mode, b.ExtractionPrompt)
	switch {
	case err != nil && b.ctx.Err() != nil:
		result = models.NewFailedResult(url, utils.MsgCancelled, "")
	case err != nil:
		result = models.NewFailedResult(url, utils.UserMessage(err), "")
		log.WithFields(logrus.Fields{
			"url":      url,
			"category": utils.CategorizeError(err),
		}).Errorf("Error processing URL %s: %v", url, err)
	case res.Status == models.StatusFailed && b.ctx.Err() != nil:
		result = models.NewFailedResult(url, utils.MsgCancelled, res.Reason)
	default:
		result = res
		if !result.Status.IsTerminal() {
			result = models.NewFailedResult(url, utils.MsgUnknown, res.Reason)
		}
		if result.Status == models.StatusFailed {
			log.WithField("url", url).Warnf("Processing failed for %s: %s", url, result.Error)
		}
	}
}

// logSummary logs per-status totals once a batch finishes.
func (o *Orchestrator) logSummary(b *Batch, elapsed time.Duration, log *logrus.Entry) {
	snap := b.Snapshot()
	log.Info("============================================")
	log.Infof("Batch completed in %v", elapsed)
	if snap.Cancelled {
		log.Info("Batch was cancelled")
	}
	for _, r := range snap.Results {
		if r.Status == models.StatusFailed {
			log.Infof("  %s: %s - %s", r.URL, r.Status.Label(), r.Error)
		} else {
			log.Debugf("  %s: %s", r.URL, r.Status.Label())
		}
	}
	log.Info("--------------------------------------------")
	log.Infof("Total: %d URLs (%d done, %d blocked, %d failed)",
		len(snap.Results),
		snap.Counts[models.StatusDone],
		snap.Counts[models.StatusBlocked],
		snap.Counts[models.StatusFailed])
	log.Info("============================================")
}
