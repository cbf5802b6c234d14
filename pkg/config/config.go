package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"scrape-gate/pkg/utils"
)

// Supported generative backends.
const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults used when the corresponding field is left empty.
const (
	DefaultProvider          = ProviderGoogleAI
	DefaultAPIKeyEnv         = "API_KEY"
	DefaultExtractionPrompt  = "Extract the article title, author, and publication date."
	DefaultTokenizerEncoding = "cl100k_base"
	DefaultServerAddr        = ":8080"
	DefaultStateDir          = "./scrape_gate_state"
)

var defaultModels = map[string]string{
	ProviderGoogleAI:  "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-20250514",
}

// PromptFiles points at optional template files replacing the built-in prompts.
type PromptFiles struct {
	Policy string `yaml:"policy,omitempty"`
	Text   string `yaml:"text,omitempty"`
	JSON   string `yaml:"json,omitempty"`
}

// TextCleanupConfig controls post-processing of text-mode output.
type TextCleanupConfig struct {
	StripHTML     bool `yaml:"strip_html,omitempty"`
	StripMarkdown bool `yaml:"strip_markdown,omitempty"`
}

// ServerConfig holds settings for the HTTP API and the MCP SSE transport.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"` // Anthropic requires an explicit output cap
	Temperature float64 `yaml:"temperature,omitempty"`

	RequestTimeout      time.Duration `yaml:"request_timeout,omitempty"` // Per backend call (0 = no timeout)
	MaxRetries          int           `yaml:"max_retries,omitempty"`     // 0 = a single attempt
	InitialRetryDelay   time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay       time.Duration `yaml:"max_retry_delay,omitempty"`
	MaxInflightRequests int           `yaml:"max_inflight_requests,omitempty"` // 0 = unlimited
	MinRequestInterval  time.Duration `yaml:"min_request_interval,omitempty"`  // 0 = no pacing
	MaxConcurrency      int           `yaml:"max_concurrency,omitempty"`       // URL tasks per batch, 0 = unlimited

	DefaultMode             string            `yaml:"default_mode,omitempty"`
	DefaultExtractionPrompt string            `yaml:"default_extraction_prompt,omitempty"`
	Prompts                 PromptFiles       `yaml:"prompts,omitempty"`
	TextCleanup             TextCleanupConfig `yaml:"text_cleanup,omitempty"`
	TokenizerEncoding       string            `yaml:"tokenizer_encoding,omitempty"`

	StateDir           string        `yaml:"state_dir,omitempty"`
	EnableHistory      bool          `yaml:"enable_history,omitempty"`
	DBGCInterval       time.Duration `yaml:"db_gc_interval,omitempty"`
	MaxRetainedBatches int           `yaml:"max_retained_batches,omitempty"`
	Server             ServerConfig  `yaml:"server,omitempty"`
}

// DefaultModelFor returns the model used for provider when none is configured.
func DefaultModelFor(provider string) string {
	return defaultModels[provider]
}

// GetEffectiveAPIKeyEnv returns the name of the credential environment variable.
func GetEffectiveAPIKeyEnv(appCfg AppConfig) string {
	if appCfg.APIKeyEnv != "" {
		return appCfg.APIKeyEnv
	}
	return DefaultAPIKeyEnv
}

// ResolveAPIKey picks the credential: an explicit override wins, otherwise the
// environment variable named by the config. A blank result is fatal.
func ResolveAPIKey(appCfg AppConfig, override string) (string, error) {
	if key := strings.TrimSpace(override); key != "" {
		return key, nil
	}
	envName := GetEffectiveAPIKeyEnv(appCfg)
	if key := strings.TrimSpace(os.Getenv(envName)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: set %s or pass -api-key", utils.ErrMissingCredential, envName)
}
