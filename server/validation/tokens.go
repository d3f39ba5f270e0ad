package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know, which
// includes every non-OpenAI backend.
const fallbackEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter counts utterance tokens using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the specified model
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// CountTokens counts the tokens in text
func (tc *TokenCounter) CountTokens(text string) int {
	return tc.encoding.CountTokens(text)
}

// ValidateTokens checks that text is within limit tokens
func (tc *TokenCounter) ValidateTokens(text string, limit int) (int, error) {
	count := tc.CountTokens(text)
	if count > limit {
		return count, fmt.Errorf("utterance tokens (%d) exceed the limit (%d)", count, limit)
	}
	return count, nil
}
