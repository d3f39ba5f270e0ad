package intent

import (
	"context"
	"encoding/json"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoice constrains whether the model must call a tool.
type ToolChoice string

const (
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
)

// ToolCall is one function call requested by the model. Arguments is the
// raw JSON object text.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a chat message exchanged with the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool declares a callable function to the model.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  Schema `json:"parameters"`
}

// MarshalParameters returns the JSON encoding of the parameter schema.
func (t Tool) MarshalParameters() ([]byte, error) {
	return json.Marshal(&t.Parameters)
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	ToolChoice  ToolChoice
	Temperature float32
	Seed        int
	// MaxTokens of zero leaves the limit to the provider.
	MaxTokens int
}

// Completion is the model's reply.
type Completion struct {
	Message Message
}

// Model is the chat completion capability the dispatcher drives. It must
// honor Tools and ToolChoice on the classification pass.
type Model interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// ImageGenerator renders a prompt to an image and returns it base64 encoded.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer renders text to mp3 audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
