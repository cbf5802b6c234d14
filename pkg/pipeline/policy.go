package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// PolicyVerdict is the structured answer of the copyright stage.
type PolicyVerdict struct {
	ScrapingAllowed bool   `json:"scrapingAllowed" jsonschema:"description=Whether scraping for AI training is likely allowed."`
	Reason          string `json:"reason" jsonschema:"description=A brief explanation for your decision."`
}

// policySchema is generated once from PolicyVerdict.
var policySchema = mustReflectSchema(&PolicyVerdict{})

// PolicySchema returns the JSON Schema sent with every policy request.
func PolicySchema() string { return policySchema }

func mustReflectSchema(v any) string {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("reflecting schema for %T: %v", v, err))
	}
	return string(data)
}

var errMissingVerdictField = errors.New("verdict is missing a required field")

// parseVerdict decodes a policy response. Both fields must be present;
// a JSON null or absent key is rejected rather than read as a zero value.
func parseVerdict(raw string) (PolicyVerdict, error) {
	var wire struct {
		ScrapingAllowed *bool   `json:"scrapingAllowed"`
		Reason          *string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &wire); err != nil {
		return PolicyVerdict{}, fmt.Errorf("invalid JSON verdict: %w", err)
	}
	if wire.ScrapingAllowed == nil {
		return PolicyVerdict{}, fmt.Errorf("%w: scrapingAllowed", errMissingVerdictField)
	}
	if wire.Reason == nil {
		return PolicyVerdict{}, fmt.Errorf("%w: reason", errMissingVerdictField)
	}
	return PolicyVerdict{ScrapingAllowed: *wire.ScrapingAllowed, Reason: *wire.Reason}, nil
}
