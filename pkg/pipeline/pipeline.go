// Package pipeline resolves a single URL: a copyright/permission verdict
// first, then, if permitted, simulated scraping in text or JSON mode.
package pipeline

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/genai"
	"scrape-gate/pkg/metrics"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

// Stage names used in errors, logs and metrics.
const (
	StagePolicy  = "policy"
	StageContent = "content"
)

// Options configures a Processor. Zero values disable the optional steps.
type Options struct {
	Prompts     Prompts
	Cleaner     *Cleaner
	CountTokens func(string) int
	Metrics     *metrics.Metrics
}

// Processor runs the per-URL pipeline against a generative backend.
// It is safe for concurrent use.
type Processor struct {
	gen         genai.Generator
	prompts     Prompts
	cleaner     *Cleaner
	schema      *OutputSchema
	countTokens func(string) int
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// New creates a Processor. Empty prompt templates fall back to the embedded ones.
func New(gen genai.Generator, opts Options, log *logrus.Entry) *Processor {
	defaults := DefaultPrompts()
	if opts.Prompts.Policy == "" {
		opts.Prompts.Policy = defaults.Policy
	}
	if opts.Prompts.Text == "" {
		opts.Prompts.Text = defaults.Text
	}
	if opts.Prompts.JSON == "" {
		opts.Prompts.JSON = defaults.JSON
	}
	return &Processor{
		gen:         gen,
		prompts:     opts.Prompts,
		cleaner:     opts.Cleaner,
		countTokens: opts.CountTokens,
		metrics:     opts.Metrics,
		log:         log,
	}
}

// WithSchema returns a copy that validates JSON-mode output against schema.
func (p *Processor) WithSchema(schema *OutputSchema) *Processor {
	cp := *p
	cp.schema = schema
	return &cp
}

// Process resolves url.
//
// A policy-stage failure is returned as a *utils.StageError wrapping
// utils.ErrPolicyCheckFailed and no content request is made. Every other
// outcome is a result: blocked, done, or failed with the content-stage
// message and the policy reason retained.
func (p *Processor) Process(ctx context.Context, url string, mode models.ProcessingMode, extractionPrompt string) (models.UrlResult, error) {
	if !mode.IsValid() {
		mode = models.ModeText
	}
	log := p.log.WithFields(logrus.Fields{"url": url, "mode": mode})

	verdict, err := p.checkPolicy(ctx, url)
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Errorf("Error in copyright check: %v", err)
		return models.UrlResult{}, err
	}
	if !verdict.ScrapingAllowed {
		log.WithField("reason", verdict.Reason).Debug("Scraping disallowed")
		return models.NewBlockedResult(url, verdict.Reason), nil
	}

	var data string
	if mode == models.ModeJSON {
		data, err = p.extractJSON(ctx, url, extractionPrompt)
	} else {
		data, err = p.scrapeText(ctx, url)
	}
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Errorf("Content stage failed: %v", err)
		return models.NewFailedResult(url, utils.UserMessage(err), verdict.Reason), nil
	}

	result := models.UrlResult{
		URL:      url,
		Status:   models.StatusDone,
		Data:     data,
		DataType: mode,
		Reason:   verdict.Reason,
	}
	if p.countTokens != nil {
		result.TokenCount = p.countTokens(data)
	}
	log.WithField("chars", len(data)).Debug("URL processed")
	return result, nil
}

func (p *Processor) checkPolicy(ctx context.Context, url string) (PolicyVerdict, error) {
	raw, err := p.gen.GenerateJSON(ctx, p.prompts.policyPrompt(url), PolicySchema())
	if err != nil {
		p.metrics.ObserveBackendRequest(StagePolicy, "error")
		return PolicyVerdict{}, utils.NewStageError(StagePolicy, utils.MsgPolicyCheckFailed, utils.ErrPolicyCheckFailed, err)
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		p.metrics.ObserveBackendRequest(StagePolicy, "invalid")
		return PolicyVerdict{}, utils.NewStageError(StagePolicy, utils.MsgPolicyCheckFailed, utils.ErrPolicyCheckFailed, err)
	}
	if verdict.ScrapingAllowed {
		p.metrics.ObserveBackendRequest(StagePolicy, "allowed")
	} else {
		p.metrics.ObserveBackendRequest(StagePolicy, "blocked")
	}
	return verdict, nil
}

func (p *Processor) scrapeText(ctx context.Context, url string) (string, error) {
	fail := func(cause error) error {
		p.metrics.ObserveBackendRequest(StageContent, "error")
		return utils.NewStageError(StageContent, utils.MsgTextFailed, utils.ErrContentGenerationFailed, cause)
	}

	data, err := p.gen.GenerateText(ctx, p.prompts.textPrompt(url))
	if err != nil {
		return "", fail(err)
	}
	if p.cleaner.Enabled() {
		if data, err = p.cleaner.Clean(data); err != nil {
			return "", fail(err)
		}
	}
	if strings.TrimSpace(data) == "" {
		return "", fail(genai.ErrEmptyResponse)
	}
	p.metrics.ObserveBackendRequest(StageContent, "ok")
	return data, nil
}

func (p *Processor) extractJSON(ctx context.Context, url, extractionPrompt string) (string, error) {
	raw, err := p.gen.GenerateJSON(ctx, p.prompts.jsonPrompt(url, extractionPrompt), p.schema.Raw())
	if err != nil {
		p.metrics.ObserveBackendRequest(StageContent, "error")
		return "", utils.NewStageError(StageContent, utils.MsgJSONFailed, utils.ErrContentGenerationFailed, err)
	}
	data := strings.TrimSpace(raw)
	if data == "" {
		p.metrics.ObserveBackendRequest(StageContent, "error")
		return "", utils.NewStageError(StageContent, utils.MsgJSONFailed, utils.ErrContentGenerationFailed, genai.ErrEmptyResponse)
	}
	if err := p.schema.Validate(data); err != nil {
		p.metrics.ObserveBackendRequest(StageContent, "schema_mismatch")
		return "", utils.NewStageError(StageContent, utils.MsgSchemaMismatch, utils.ErrSchemaMismatch, err)
	}
	p.metrics.ObserveBackendRequest(StageContent, "ok")
	return data, nil
}
