package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap/zaptest"

	"github.com/teilomillet/aci/config"
	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/server/mocks"
)

var base64Tool = intent.Tool{
	Name:        "convert_name_to_base64",
	Description: "Convert name to base64",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":            {Type: jsonschema.String},
			"response_format": {Type: jsonschema.String},
		},
		Required: []string{"name", "response_format"},
	},
}

func classifyRequest() intent.CompletionRequest {
	return intent.CompletionRequest{
		Model: "llama3",
		Messages: []intent.Message{
			{Role: intent.RoleSystem, Content: "Classify the intent."},
			{Role: intent.RoleUser, Content: "Convert Alice to base64"},
		},
		Tools:       []intent.Tool{base64Tool},
		ToolChoice:  intent.ToolChoiceRequired,
		Temperature: 0.2,
		Seed:        7,
	}
}

func TestGollmToolCall(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantArgs string
	}{
		{
			name:     "bare json",
			reply:    `{"tool":"convert_name_to_base64","arguments":{"name":"Alice","response_format":"text:plain"}}`,
			wantArgs: `{"name":"Alice","response_format":"text:plain"}`,
		},
		{
			name:     "fenced json",
			reply:    "```json\n{\"tool\":\"convert_name_to_base64\",\"arguments\":{\"name\":\"Alice\",\"response_format\":\"text:plain\"}}\n```",
			wantArgs: `{"name":"Alice","response_format":"text:plain"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
				return tt.reply, nil
			})
			g := NewGollm(llm, zaptest.NewLogger(t))

			completion, err := g.Complete(context.Background(), classifyRequest())
			require.NoError(t, err)
			require.Len(t, completion.Message.ToolCalls, 1)

			call := completion.Message.ToolCalls[0]
			assert.Equal(t, "convert_name_to_base64", call.Name)
			assert.JSONEq(t, tt.wantArgs, call.Arguments)
			assert.True(t, strings.HasPrefix(call.ID, "call_"))
		})
	}
}

func TestGollmPromptCarriesCatalogue(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return `{"tool":"convert_name_to_base64","arguments":{"name":"Alice","response_format":"text:plain"}}`, nil
	})
	g := NewGollm(llm, zaptest.NewLogger(t))

	_, err := g.Complete(context.Background(), classifyRequest())
	require.NoError(t, err)

	prompts := llm.Prompts()
	require.Len(t, prompts, 1)
	require.Len(t, prompts[0].Messages, 2)

	system := prompts[0].Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.True(t, strings.HasPrefix(system.Content, "Classify the intent."))
	assert.Contains(t, system.Content, "- convert_name_to_base64: Convert name to base64")
	assert.Contains(t, system.Content, `"tool"`)
	assert.Equal(t, "Convert Alice to base64", prompts[0].Messages[1].Content)

	temp, ok := llm.Option("temperature")
	require.True(t, ok)
	assert.InDelta(t, 0.2, temp, 0.0001)
	seed, ok := llm.Option("seed")
	require.True(t, ok)
	assert.Equal(t, 7, seed)
	_, ok = llm.Option("max_tokens")
	assert.False(t, ok)
}

func TestGollmNonToolReply(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "I think you want base64.", nil
	})
	g := NewGollm(llm, zaptest.NewLogger(t))

	completion, err := g.Complete(context.Background(), classifyRequest())
	require.NoError(t, err)
	assert.Empty(t, completion.Message.ToolCalls)
	assert.Equal(t, "I think you want base64.", completion.Message.Content)
}

func TestGollmArgumentsMismatchPassesThrough(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return `{"tool":"convert_name_to_base64","arguments":{"name":42}}`, nil
	})
	g := NewGollm(llm, zaptest.NewLogger(t))

	completion, err := g.Complete(context.Background(), classifyRequest())
	require.NoError(t, err)
	require.Len(t, completion.Message.ToolCalls, 1)
	assert.JSONEq(t, `{"name":42}`, completion.Message.ToolCalls[0].Arguments)
}

func TestGollmUnknownFormatDefaultsToText(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		if len(p.Messages) > 0 && strings.Contains(p.Messages[0].Content, `"tool"`) {
			return `{"tool":"greet","arguments":{"name":"Bob","response_format":"structured:toml"}}`, nil
		}
		return "hello Bob", nil
	})
	backend := Wrap(NewGollm(llm, zaptest.NewLogger(t)), config.CircuitBreakerConfig{
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, zaptest.NewLogger(t), prometheus.NewRegistry())

	d, err := intent.New(intent.Config{Model: "llama3", Client: backend.Model}, intent.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	d.Register("Greet", intent.Schema{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{"name": {Type: jsonschema.String}},
		Required:   []string{"name"},
	}, func(ctx context.Context, req intent.Request) (any, error) {
		return "hello " + req.Entities["name"].(string), nil
	})

	for i := 0; i < 3; i++ {
		resp, err := d.Handle(context.Background(), "greet Bob in toml")
		require.NoError(t, err)
		assert.Equal(t, intent.FormatTextPlain, resp.Format)
		assert.Equal(t, "hello Bob", resp.Output)
	}
	assert.Equal(t, "closed", backend.BreakerState())
}

func TestGollmFormatPass(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "QWxpY2U=", nil
	})
	g := NewGollm(llm, zaptest.NewLogger(t))

	completion, err := g.Complete(context.Background(), intent.CompletionRequest{
		Model: "llama3",
		Messages: []intent.Message{
			{Role: intent.RoleSystem, Content: "Fulfill the user's intent by providing a text:plain response."},
			{Role: intent.RoleUser, Content: "Convert Alice to base64"},
			{Role: intent.RoleAssistant, ToolCalls: []intent.ToolCall{{ID: "call_1", Name: "convert_name_to_base64", Arguments: `{"name":"Alice"}`}}},
			{Role: intent.RoleTool, ToolCallID: "call_1", Content: `"QWxpY2U="`},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "QWxpY2U=", completion.Message.Content)

	msgs := llm.Prompts()[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "Fulfill the user's intent by providing a text:plain response.", msgs[0].Content)
	assert.Contains(t, msgs[2].Content, "Called tool convert_name_to_base64 (call_1)")
	assert.Equal(t, "user", msgs[3].Role)
	assert.Contains(t, msgs[3].Content, `"QWxpY2U="`)
}

func TestGollmGenerateError(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "", errors.New("connection refused")
	})
	g := NewGollm(llm, zaptest.NewLogger(t))

	_, err := g.Complete(context.Background(), classifyRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
