package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/genai"
	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/render"
)

// scriptedBackend blocks any URL containing "blocked" and fails text
// generation for any URL containing "broken".
func scriptedBackend() *genai.Scripted {
	return &genai.Scripted{
		JSON: func(_ context.Context, prompt, schema string) (string, error) {
			if schema == pipeline.PolicySchema() {
				if strings.Contains(prompt, "blocked") {
					return `{"scrapingAllowed": false, "reason": "Paywalled news"}`, nil
				}
				return `{"scrapingAllowed": true, "reason": "Public docs"}`, nil
			}
			return `{"title": "Hello"}`, nil
		},
		Text: func(_ context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "broken") {
				return "", errors.New("upstream exploded")
			}
			return "Scraped body", nil
		},
	}
}

func useFakeBackend(t *testing.T, gen genai.Generator) {
	t.Helper()
	orig := newBackend
	newBackend = func(context.Context, config.AppConfig, string, *logrus.Entry) (*genai.Backend, error) {
		return &genai.Backend{Generator: gen, Provider: "fake", Model: "fake-1"}, nil
	}
	t.Cleanup(func() { newBackend = orig })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func baseRunOptions(cfgPath string) runOptions {
	return runOptions{
		configPath: cfgPath,
		logLevel:   "error",
		format:     render.FormatTable,
		apiKey:     "test-key",
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
provider: openai
max_concurrency: 3
text_cleanup:
  strip_markdown: true
`)
	cfg, err := loadConfig(cfgPath, false)

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.True(t, cfg.TextCleanup.StripMarkdown)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_MissingAllowed(t *testing.T) {
	cfg, err := loadConfig("/nonexistent/path/config.yaml", true)

	require.NoError(t, err)
	assert.Equal(t, config.AppConfig{}, *cfg)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeConfig(t, "{{invalid yaml")

	_, err := loadConfig(cfgPath, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDoValidate_Valid(t *testing.T) {
	t.Setenv("SCRAPE_GATE_TEST_KEY", "secret")
	cfgPath := writeConfig(t, `
provider: anthropic
api_key_env: SCRAPE_GATE_TEST_KEY
`)
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, "", &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "OK: backend anthropic")
	assert.Contains(t, out, "OK: [prompts]")
	assert.Contains(t, out, "OK: [tokenizer] cl100k_base")
	assert.Contains(t, out, "Configuration valid")
	assert.NotContains(t, out, "WARN")
}

func TestDoValidate_MissingCredentialIsWarning(t *testing.T) {
	t.Setenv("SCRAPE_GATE_TEST_KEY", "")
	cfgPath := writeConfig(t, "api_key_env: SCRAPE_GATE_TEST_KEY\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, "", &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN: missing API credential")
}

func TestDoValidate_Errors(t *testing.T) {
	badSchema := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(badSchema, []byte(`{"type": `), 0644))

	tests := []struct {
		name    string
		config  string
		schema  string
		wantErr string
	}{
		{name: "unknown provider", config: "provider: carrier-pigeon\n", wantErr: "unknown provider"},
		{name: "bad default mode", config: "default_mode: xml\n", wantErr: "default_mode"},
		{name: "missing prompt file", config: "prompts:\n  text: /nonexistent/text.md\n", wantErr: "[prompts]"},
		{name: "unknown tokenizer", config: "tokenizer_encoding: nope\n", wantErr: "[tokenizer]"},
		{name: "bad schema", config: "provider: openai\n", schema: badSchema, wantErr: "[schema]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			exitCode := doValidate(writeConfig(t, tt.config), tt.schema, &stdout, &stderr)

			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent.yaml", "", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoRun_TextBatch(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	opts := baseRunOptions("/nonexistent/config.yaml")
	opts.urls = []string{"https://docs.example.com", "https://news.blocked.example"}

	var stdout, stderr bytes.Buffer
	exitCode := doRun(context.Background(), opts, nil, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Ready")
	assert.Contains(t, out, "Copyright Found")
	assert.Contains(t, out, "Paywalled news")
	assert.Contains(t, out, "1 done, 1 blocked, 0 failed")
}

func TestDoRun_FailureSetsExitCode(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	opts := baseRunOptions("/nonexistent/config.yaml")

	var stdout, stderr bytes.Buffer
	exitCode := doRun(context.Background(), opts, strings.NewReader("https://broken.example\n"), &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stdout.String(), "0 done, 0 blocked, 1 failed")
}

func TestDoRun_EmptyInputIsNoop(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	opts := baseRunOptions("/nonexistent/config.yaml")

	var stdout, stderr bytes.Buffer
	exitCode := doRun(context.Background(), opts, strings.NewReader("  \n\n"), &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "No URLs to process")
}

func TestDoRun_MissingCredential(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	t.Setenv("SCRAPE_GATE_TEST_KEY", "")
	opts := baseRunOptions(writeConfig(t, "api_key_env: SCRAPE_GATE_TEST_KEY\n"))
	opts.apiKey = ""
	opts.urls = []string{"https://docs.example.com"}

	var stdout, stderr bytes.Buffer
	exitCode := doRun(context.Background(), opts, nil, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "SCRAPE_GATE_TEST_KEY")
}

func TestDoRun_InvalidFlags(t *testing.T) {
	useFakeBackend(t, scriptedBackend())

	tests := []struct {
		name    string
		mutate  func(*runOptions)
		wantErr string
	}{
		{name: "mode", mutate: func(o *runOptions) { o.mode = "xml" }, wantErr: "unknown mode"},
		{name: "format", mutate: func(o *runOptions) { o.format = "csv" }, wantErr: "csv"},
		{name: "file", mutate: func(o *runOptions) { o.file = "/nonexistent/urls.txt" }, wantErr: "Error"},
		{name: "schema", mutate: func(o *runOptions) { o.schemaPath = "/nonexistent/schema.json" }, wantErr: "read schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseRunOptions("/nonexistent/config.yaml")
			opts.urls = []string{"https://docs.example.com"}
			tt.mutate(&opts)

			var stdout, stderr bytes.Buffer
			exitCode := doRun(context.Background(), opts, nil, &stdout, &stderr)

			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoRun_JSONModeWithSchema(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{
  "type": "object",
  "required": ["title", "author"]
}`), 0644))

	opts := baseRunOptions("/nonexistent/config.yaml")
	opts.mode = "json"
	opts.schemaPath = schemaPath
	opts.format = render.FormatJSON
	opts.urls = []string{"https://docs.example.com"}

	var stdout, stderr bytes.Buffer
	exitCode := doRun(context.Background(), opts, nil, &stdout, &stderr)

	// {"title": "Hello"} lacks the author the schema requires.
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stdout.String(), `"status": "failed"`)
}

func TestDoRun_ExportAndHistory(t *testing.T) {
	useFakeBackend(t, scriptedBackend())
	stateDir := t.TempDir()
	exportDir := t.TempDir()
	cfgPath := writeConfig(t, "enable_history: true\nstate_dir: "+stateDir+"\n")

	urlsFile := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(urlsFile, []byte("https://a.example\nhttps://a.example\nhttps://blocked.example\n"), 0644))

	opts := baseRunOptions(cfgPath)
	opts.file = urlsFile
	opts.exportDir = exportDir

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, doRun(context.Background(), opts, nil, &stdout, &stderr), stderr.String())
	assert.Contains(t, stderr.String(), "Exported 2 result(s)")

	batchDirs, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, batchDirs, 1)
	files, err := os.ReadDir(filepath.Join(exportDir, batchDirs[0].Name()))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	t.Run("list", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		exitCode := doHistory(historyOptions{configPath: cfgPath, logLevel: "error", limit: 10, format: render.FormatTable}, &stdout, &stderr)

		assert.Equal(t, 0, exitCode, stderr.String())
		assert.Contains(t, stdout.String(), "BLOCKED")
		assert.Contains(t, stdout.String(), "text")
	})

	t.Run("unknown id", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		exitCode := doHistory(historyOptions{configPath: cfgPath, logLevel: "error", format: render.FormatTable, id: "nope"}, &stdout, &stderr)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stderr.String(), "not found")
	})
}

func TestDoHistory_Empty(t *testing.T) {
	cfgPath := writeConfig(t, "state_dir: "+t.TempDir()+"\n")

	var stdout, stderr bytes.Buffer
	exitCode := doHistory(historyOptions{configPath: cfgPath, logLevel: "error", format: render.FormatTable}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "No archived batches.")
}

func TestDoRun_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	useFakeBackend(t, &genai.Scripted{
		JSON: func(ctx context.Context, _, _ string) (string, error) {
			select {
			case <-release:
				return `{"scrapingAllowed": true, "reason": "ok"}`, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := baseRunOptions("/nonexistent/config.yaml")
	opts.urls = []string{"https://docs.example.com"}

	var stdout, stderr bytes.Buffer
	exitCode := doRun(ctx, opts, nil, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stdout.String(), "Processing was cancelled.")
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"run", "serve", "mcp-server", "validate", "history", "version"} {
		assert.Contains(t, out, cmd)
	}
}

func TestSetupLogger_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := setupLogger("chatty", &buf)

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}
