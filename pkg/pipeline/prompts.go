package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/utils"
)

// Template variables substituted into prompts.
const (
	urlVar     = "{{.url}}"
	requestVar = "{{.extraction_request}}"
)

//go:embed prompts/policy.md
var defaultPolicyPrompt string

//go:embed prompts/text.md
var defaultTextPrompt string

//go:embed prompts/json.md
var defaultJSONPrompt string

// Prompts holds the three stage templates.
type Prompts struct {
	Policy string
	Text   string
	JSON   string
}

// DefaultPrompts returns the embedded templates.
func DefaultPrompts() Prompts {
	return Prompts{Policy: defaultPolicyPrompt, Text: defaultTextPrompt, JSON: defaultJSONPrompt}
}

// LoadPrompts starts from the embedded templates and replaces any for which
// files names an override. Overrides must keep the variables they need.
func LoadPrompts(files config.PromptFiles) (Prompts, error) {
	p := DefaultPrompts()
	overrides := []struct {
		path     string
		dst      *string
		required []string
	}{
		{files.Policy, &p.Policy, []string{urlVar}},
		{files.Text, &p.Text, []string{urlVar}},
		{files.JSON, &p.JSON, []string{urlVar, requestVar}},
	}
	for _, o := range overrides {
		if o.path == "" {
			continue
		}
		content, err := os.ReadFile(o.path)
		if err != nil {
			return Prompts{}, fmt.Errorf("%w: reading prompt template %s: %w", utils.ErrFilesystem, o.path, err)
		}
		for _, v := range o.required {
			if !strings.Contains(string(content), v) {
				return Prompts{}, fmt.Errorf("%w: prompt template %s must contain %s", utils.ErrConfigValidation, o.path, v)
			}
		}
		*o.dst = string(content)
	}
	return p, nil
}

// render substitutes variables in a single pass, so a URL that happens to
// contain a placeholder is never expanded twice.
func render(tmpl, url, request string) string {
	return strings.NewReplacer(urlVar, url, requestVar, request).Replace(tmpl)
}

func (p Prompts) policyPrompt(url string) string { return render(p.Policy, url, "") }

func (p Prompts) textPrompt(url string) string { return render(p.Text, url, "") }

func (p Prompts) jsonPrompt(url, request string) string { return render(p.JSON, url, request) }
