// Package validation reads and checks utterance requests before they are
// dispatched.
package validation

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/teilomillet/aci/errors"
)

var validate = validator.New()

// Limits bounds the utterances accepted by the HTTP front-end.
type Limits struct {
	// MaxBodyBytes caps the request body size
	MaxBodyBytes int64 `validate:"gt=0"`

	// MaxTokens caps the utterance token count. Zero disables the check.
	MaxTokens int `validate:"gte=0"`

	// Model selects the tokenizer
	Model string `validate:"required_with=MaxTokens"`
}

// Validator reads utterances from request bodies.
type Validator struct {
	limits  Limits
	counter *TokenCounter
}

// New creates a validator. The tokenizer is only loaded when a token limit
// is set.
func New(limits Limits) (*Validator, error) {
	if err := validate.Struct(limits); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}

	v := &Validator{limits: limits}
	if limits.MaxTokens > 0 {
		counter, err := NewTokenCounter(limits.Model)
		if err != nil {
			return nil, err
		}
		v.counter = counter
	}
	return v, nil
}

// NewWithTokenizer creates a validator counting tokens with tokenizer.
func NewWithTokenizer(limits Limits, tokenizer Tokenizer) (*Validator, error) {
	if err := validate.Struct(limits); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	return &Validator{limits: limits, counter: &TokenCounter{encoding: tokenizer}}, nil
}

// ReadUtterance reads the whole body as the utterance and trims it.
//
// Rejections are returned as *errors.ACIError:
//   - 413 when the body exceeds MaxBodyBytes
//   - 400 when the body cannot be read
//   - 422 when the utterance exceeds MaxTokens
//
// An empty utterance is not rejected here; the dispatcher refuses it.
func (v *Validator) ReadUtterance(w http.ResponseWriter, r *http.Request) (string, error) {
	requestID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, v.limits.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", errors.NewError(
				errors.ValidationError,
				"Request body too large",
				http.StatusRequestEntityTooLarge,
				requestID,
				map[string]interface{}{"limit": tooLarge.Limit},
				err,
			)
		}
		return "", errors.NewError(errors.ValidationError, "Failed to read request body", http.StatusBadRequest, requestID, nil, err)
	}

	utterance := strings.TrimSpace(string(body))

	if v.limits.MaxTokens > 0 && v.counter != nil {
		count, err := v.counter.ValidateTokens(utterance, v.limits.MaxTokens)
		if err != nil {
			return "", errors.NewError(
				errors.ValidationError,
				"Utterance too long",
				http.StatusUnprocessableEntity,
				requestID,
				map[string]interface{}{
					"tokens": count,
					"limit":  v.limits.MaxTokens,
				},
				err,
			)
		}
	}

	return utterance, nil
}
