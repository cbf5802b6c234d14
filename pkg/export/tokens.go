package export

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"scrape-gate/pkg/utils"
)

var encodings = map[string]tokenizer.Encoding{
	"cl100k_base": tokenizer.Cl100kBase,
	"p50k_base":   tokenizer.P50kBase,
	"p50k_edit":   tokenizer.P50kEdit,
	"r50k_base":   tokenizer.R50kBase,
	"o200k_base":  tokenizer.O200kBase,
}

// TokenCounter approximates how many model tokens a text occupies.
// Gemini and Claude tokenizers are not public; cl100k_base is close enough
// for sizing datasets. A nil *TokenCounter counts everything as -1.
type TokenCounter struct {
	codec    tokenizer.Codec
	encoding string
}

// NewTokenCounter loads the named encoding ("" means cl100k_base).
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, ok := encodings[encoding]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tokenizer encoding %q", utils.ErrConfigValidation, encoding)
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", encoding, err)
	}
	return &TokenCounter{codec: codec, encoding: encoding}, nil
}

// Encoding returns the encoding name in use.
func (tc *TokenCounter) Encoding() string {
	if tc == nil {
		return ""
	}
	return tc.encoding
}

// Count returns the token count for text, or -1 when the counter is
// unavailable or encoding fails, so callers can tell "unknown" from zero.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return -1
	}
	ids, _, err := tc.codec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}
