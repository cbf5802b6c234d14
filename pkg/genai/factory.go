package genai

import (
	"context"
	"fmt"

	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/utils"
)

// Backend is a configured Generator plus whatever must be released on shutdown.
type Backend struct {
	Generator
	Provider string
	Model    string
	closeFn  func() error
}

// Close releases provider clients. Safe on a nil receiver.
func (b *Backend) Close() error {
	if b == nil || b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// NewBackend builds the provider named in appCfg and wraps it with the
// configured timeout, throttling and retry layers. appCfg must be validated.
func NewBackend(ctx context.Context, appCfg config.AppConfig, apiKey string, log *logrus.Entry) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key for provider %s", utils.ErrMissingCredential, appCfg.Provider)
	}
	genLog := log.WithFields(logrus.Fields{"provider": appCfg.Provider, "model": appCfg.Model})

	var (
		base    Generator
		closeFn func() error
	)
	switch appCfg.Provider {
	case config.ProviderGoogleAI:
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(apiKey),
			googleai.WithDefaultModel(appCfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating googleai client: %w", err)
		}
		base = NewLangchainGenerator(model, genLog, callOptions(appCfg)...)
		closeFn = model.Close
	case config.ProviderOpenAI:
		model, err := openai.New(openai.WithToken(apiKey), openai.WithModel(appCfg.Model))
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		base = NewLangchainGenerator(model, genLog, callOptions(appCfg)...)
	case config.ProviderAnthropic:
		base = NewAnthropicGenerator(apiKey, types.RequestSettings{
			Model:       appCfg.Model,
			MaxTokens:   appCfg.MaxTokens,
			Temperature: appCfg.Temperature,
		}, genLog)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", utils.ErrConfigValidation, appCfg.Provider)
	}

	gen := Chain(base,
		WithRetry(RetryConfig{
			MaxRetries:      uint64(appCfg.MaxRetries),
			InitialInterval: appCfg.InitialRetryDelay,
			MaxInterval:     appCfg.MaxRetryDelay,
		}, nil, genLog),
		WithThrottle(NewLimiter(appCfg.MaxInflightRequests), NewPacer(appCfg.MinRequestInterval, genLog)),
		WithTimeout(appCfg.RequestTimeout),
	)

	genLog.WithFields(logrus.Fields{
		"max_retries":           appCfg.MaxRetries,
		"max_inflight_requests": appCfg.MaxInflightRequests,
		"min_request_interval":  appCfg.MinRequestInterval,
		"request_timeout":       appCfg.RequestTimeout,
	}).Debug("Generative backend ready")

	return &Backend{Generator: gen, Provider: appCfg.Provider, Model: appCfg.Model, closeFn: closeFn}, nil
}

// callOptions maps generation settings onto langchaingo call options.
func callOptions(appCfg config.AppConfig) []llms.CallOption {
	var opts []llms.CallOption
	if appCfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(appCfg.MaxTokens))
	}
	if appCfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(appCfg.Temperature))
	}
	return opts
}
