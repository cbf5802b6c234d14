package genai

import (
	"context"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/sirupsen/logrus"
)

// anthropicSystemPrompt frames every request sent through llmkit.
const anthropicSystemPrompt = "You are a simulated web scraping and data preparation engine. You never access the network; you answer from prior knowledge and follow the output format instructions exactly."

// promptFunc matches the llmkit call shape so tests can substitute it.
type promptFunc func(system, user, schema, apiKey string, settings types.RequestSettings) (string, error)

func llmkitPrompt(system, user, schema, apiKey string, settings types.RequestSettings) (string, error) {
	resp, err := anthropic.PromptWithSettings(system, user, schema, apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Content[0].Text, nil
}

// AnthropicGenerator calls Claude through llmkit, which passes JSON schemas
// to the API as a native structured-output constraint.
type AnthropicGenerator struct {
	apiKey   string
	settings types.RequestSettings
	prompt   promptFunc
	log      *logrus.Entry
}

// NewAnthropicGenerator creates a generator for the given model settings.
func NewAnthropicGenerator(apiKey string, settings types.RequestSettings, log *logrus.Entry) *AnthropicGenerator {
	return &AnthropicGenerator{apiKey: apiKey, settings: settings, prompt: llmkitPrompt, log: log}
}

func (g *AnthropicGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.do(ctx, prompt, "")
}

func (g *AnthropicGenerator) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return g.do(ctx, prompt, schema)
}

// do runs the blocking llmkit call off the caller's goroutine so ctx
// cancellation is honoured. An abandoned call finishes in the background.
func (g *AnthropicGenerator) do(ctx context.Context, prompt, schema string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := g.prompt(anthropicSystemPrompt, prompt, schema, g.apiKey, g.settings)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.text == "" {
			return "", ErrEmptyResponse
		}
		return r.text, r.err
	case <-ctx.Done():
		g.log.WithField("model", g.settings.Model).Debug("Abandoning in-flight llmkit request")
		return "", ctx.Err()
	}
}
