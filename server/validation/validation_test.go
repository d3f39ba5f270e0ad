package validation

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/aci/errors"
)

// mockTokenizer counts whitespace separated words
type mockTokenizer struct{}

func (mockTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func TestNewRejectsInvalidLimits(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
	}{
		{name: "zero body cap", limits: Limits{MaxBodyBytes: 0}},
		{name: "negative tokens", limits: Limits{MaxBodyBytes: 10, MaxTokens: -1}},
		{name: "tokens without model", limits: Limits{MaxBodyBytes: 10, MaxTokens: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.limits)
			assert.Error(t, err)
		})
	}
}

func TestReadUtterance(t *testing.T) {
	tests := []struct {
		name       string
		limits     Limits
		body       string
		want       string
		wantStatus int
	}{
		{
			name:   "trims body",
			limits: Limits{MaxBodyBytes: 1 << 10},
			body:   "  please base64 encode Alice\n",
			want:   "please base64 encode Alice",
		},
		{
			name:   "empty body passes through",
			limits: Limits{MaxBodyBytes: 1 << 10},
			body:   "",
			want:   "",
		},
		{
			name:       "body too large",
			limits:     Limits{MaxBodyBytes: 4},
			body:       "hello world",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "within token limit",
			limits: Limits{MaxBodyBytes: 1 << 10, MaxTokens: 3, Model: "gpt-4o-mini"},
			body:   "check project status",
			want:   "check project status",
		},
		{
			name:       "token limit exceeded",
			limits:     Limits{MaxBodyBytes: 1 << 10, MaxTokens: 2, Model: "gpt-4o-mini"},
			body:       "check project status",
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewWithTokenizer(tt.limits, mockTokenizer{})
			require.NoError(t, err)

			w := httptest.NewRecorder()
			w.Header().Set("X-Request-ID", "req_123")
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			got, err := v.ReadUtterance(w, r)
			if tt.wantStatus != 0 {
				var aciErr *errors.ACIError
				require.True(t, stderrors.As(err, &aciErr))
				assert.Equal(t, tt.wantStatus, aciErr.Code)
				assert.Equal(t, errors.ValidationError, aciErr.Type)
				assert.Equal(t, "req_123", aciErr.RequestID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenCounter(t *testing.T) {
	tc := &TokenCounter{encoding: mockTokenizer{}}

	count, err := tc.ValidateTokens("one two three", 3)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = tc.ValidateTokens("one two three four", 3)
	assert.Error(t, err)
	assert.Equal(t, 4, count)
}
