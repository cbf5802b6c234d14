package genai

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// LangchainGenerator drives any langchaingo model (Gemini, OpenAI, ...).
type LangchainGenerator struct {
	model llms.Model
	opts  []llms.CallOption
	log   *logrus.Entry
}

// NewLangchainGenerator wraps model. opts are applied to every request.
func NewLangchainGenerator(model llms.Model, log *logrus.Entry, opts ...llms.CallOption) *LangchainGenerator {
	return &LangchainGenerator{model: model, opts: opts, log: log}
}

// GenerateText implements Generator
func (g *LangchainGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, g.opts...)
	if err != nil {
		return "", err
	}
	g.log.WithField("chars", len(out)).Trace("Text response received")
	return out, nil
}

// GenerateJSON implements Generator. langchaingo has no portable structured
// output option, so JSON mode is requested and the schema rides in the prompt.
func (g *LangchainGenerator) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	if schema != "" {
		prompt = appendSchemaInstruction(prompt, schema)
	}
	opts := append(slices.Clone(g.opts), llms.WithJSONMode())
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
	if err != nil {
		return "", err
	}
	g.log.WithField("chars", len(out)).Trace("JSON response received")
	return out, nil
}

func appendSchemaInstruction(prompt, schema string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(prompt, " \t\n"))
	b.WriteString("\n\nThe JSON object MUST conform to this JSON Schema:\n")
	b.WriteString(schema)
	b.WriteString("\n")
	return b.String()
}
