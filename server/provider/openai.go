package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/teilomillet/aci/intent"
)

// Verify at compile time that OpenAI provides every model capability
var (
	_ intent.Model             = (*OpenAI)(nil)
	_ intent.ImageGenerator    = (*OpenAI)(nil)
	_ intent.SpeechSynthesizer = (*OpenAI)(nil)
)

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey string
	// BaseURL targets any OpenAI-compatible server. Empty uses api.openai.com.
	BaseURL     string
	ImageModel  string
	SpeechModel string
	Voice       string
}

// OpenAI drives the chat completions API with native tool calling. It also
// renders images and speech when the matching models are configured.
type OpenAI struct {
	client      *openai.Client
	imageModel  string
	speechModel string
	voice       string
}

// NewOpenAI creates the adapter from cfg.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg)
}

// NewOpenAIWithClient wraps a pre-configured client.
func NewOpenAIWithClient(client *openai.Client, cfg OpenAIConfig) *OpenAI {
	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{
		client:      client,
		imageModel:  cfg.ImageModel,
		speechModel: cfg.SpeechModel,
		voice:       voice,
	}
}

// HasImages reports whether an image model is configured.
func (o *OpenAI) HasImages() bool { return o.imageModel != "" }

// HasSpeech reports whether a speech model is configured.
func (o *OpenAI) HasSpeech() bool { return o.speechModel != "" }

// Complete implements intent.Model.
func (o *OpenAI) Complete(ctx context.Context, req intent.CompletionRequest) (*intent.Completion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, toChatCompletionRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion: no choices")
	}
	return &intent.Completion{Message: fromChatMessage(resp.Choices[0].Message)}, nil
}

func toChatCompletionRequest(req intent.CompletionRequest) openai.ChatCompletionRequest {
	seed := req.Seed
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		Seed:        &seed,
		MaxTokens:   req.MaxTokens,
	}
	// The temperature field is omitted when zero, which the API reads as 1.
	if out.Temperature == 0 {
		out.Temperature = math.SmallestNonzeroFloat32
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, toChatMessage(msg))
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]openai.Tool, len(req.Tools))
		for i := range req.Tools {
			out.Tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        req.Tools[i].Name,
					Description: req.Tools[i].Description,
					Parameters:  &req.Tools[i].Parameters,
				},
			}
		}
		if req.ToolChoice != "" {
			out.ToolChoice = string(req.ToolChoice)
		}
	}
	return out
}

func toChatMessage(msg intent.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func fromChatMessage(msg openai.ChatCompletionMessage) intent.Message {
	out := intent.Message{
		Role:    intent.RoleAssistant,
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, intent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// GenerateImage implements intent.ImageGenerator.
func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if o.imageModel == "" {
		return "", errors.New("openai: no image model configured")
	}
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai image: empty response")
	}
	return resp.Data[0].B64JSON, nil
}

// Synthesize implements intent.SpeechSynthesizer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if o.speechModel == "" {
		return nil, errors.New("openai: no speech model configured")
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return audio, nil
}
