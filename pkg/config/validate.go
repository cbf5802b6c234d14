package config

import (
	"fmt"
	"strings"
	"time"

	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Provider
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if _, ok := defaultModels[c.Provider]; !ok {
		return warnings, fmt.Errorf("%w: unknown provider %q (want googleai, openai or anthropic)", utils.ErrConfigValidation, c.Provider)
	}

	// Model
	if c.Model == "" {
		c.Model = DefaultModelFor(c.Provider)
	}

	if c.APIKeyEnv == "" {
		c.APIKeyEnv = DefaultAPIKeyEnv
	}

	// MaxTokens
	if c.MaxTokens < 0 {
		warnings = append(warnings, "max_tokens cannot be negative, using provider default")
		c.MaxTokens = 0
	}
	if c.Provider == ProviderAnthropic && c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}

	// Temperature
	if c.Temperature < 0 || c.Temperature > 2 {
		warnings = append(warnings, fmt.Sprintf("temperature %.2f out of range [0,2], using 0", c.Temperature))
		c.Temperature = 0
	}

	// RequestTimeout
	if c.RequestTimeout < 0 {
		warnings = append(warnings, "request_timeout cannot be negative, disabling timeout")
		c.RequestTimeout = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// Throttling knobs
	if c.MaxInflightRequests < 0 {
		warnings = append(warnings, "max_inflight_requests cannot be negative, setting to 0 (unlimited)")
		c.MaxInflightRequests = 0
	}
	if c.MinRequestInterval < 0 {
		warnings = append(warnings, "min_request_interval cannot be negative, disabling pacing")
		c.MinRequestInterval = 0
	}
	if c.MaxConcurrency < 0 {
		warnings = append(warnings, "max_concurrency cannot be negative, setting to 0 (unlimited)")
		c.MaxConcurrency = 0
	}

	// DefaultMode
	mode, ok := models.ParseMode(c.DefaultMode)
	if !ok {
		return warnings, fmt.Errorf("%w: default_mode %q is not one of text, json", utils.ErrConfigValidation, c.DefaultMode)
	}
	c.DefaultMode = mode.String()

	if strings.TrimSpace(c.DefaultExtractionPrompt) == "" {
		c.DefaultExtractionPrompt = DefaultExtractionPrompt
	}

	if c.TokenizerEncoding == "" {
		c.TokenizerEncoding = DefaultTokenizerEncoding
	}

	// StateDir
	if c.StateDir == "" {
		if c.EnableHistory {
			warnings = append(warnings, fmt.Sprintf("state_dir is empty, defaulting to '%s'", DefaultStateDir))
		}
		c.StateDir = DefaultStateDir
	}

	if c.DBGCInterval < 0 {
		warnings = append(warnings, "db_gc_interval cannot be negative, disabling periodic GC")
		c.DBGCInterval = 0
	}
	if c.EnableHistory && c.DBGCInterval == 0 {
		c.DBGCInterval = 10 * time.Minute
	}

	// MaxRetainedBatches
	if c.MaxRetainedBatches < 0 {
		warnings = append(warnings, "max_retained_batches cannot be negative, setting to 0 (keep all)")
		c.MaxRetainedBatches = 0
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	return warnings, nil
}
