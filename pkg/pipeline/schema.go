package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scrape-gate/pkg/utils"
)

const outputSchemaURL = "mem://scrape-gate/output-schema.json"

// OutputSchema is a compiled caller-supplied JSON Schema for json mode.
type OutputSchema struct {
	raw      string
	compiled *jsonschema.Schema
}

// CompileOutputSchema compiles raw. Blank input yields nil (no validation).
func CompileOutputSchema(raw string) (*OutputSchema, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	compiled, err := jsonschema.CompileString(outputSchemaURL, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling output schema: %w", utils.ErrConfigValidation, err)
	}
	return &OutputSchema{raw: raw, compiled: compiled}, nil
}

// Raw returns the schema text as supplied, or "" for a nil schema.
func (s *OutputSchema) Raw() string {
	if s == nil {
		return ""
	}
	return s.raw
}

// Validate checks that data is a single JSON value satisfying the schema.
// A nil schema accepts anything.
func (s *OutputSchema) Validate(data string) error {
	if s == nil {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("invalid JSON: trailing data after value")
	}
	if err := s.compiled.Validate(v); err != nil {
		return err
	}
	return nil
}
