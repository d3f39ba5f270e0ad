package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/teilomillet/aci/intent"
)

// MockModel implements intent.Model with scripted replies.
//
// Replies are consumed in order, one per Complete call. CompleteFunc, when
// set, takes precedence. Every request is recorded for assertions.
//
// Example usage:
//
//	model := NewMockModel(
//	    ToolCallCompletion("convert_name_to_base64", `{"name":"Alice","response_format":"text:plain"}`),
//	    TextCompletion("QWxpY2U="),
//	)
type MockModel struct {
	CompleteFunc func(context.Context, intent.CompletionRequest) (*intent.Completion, error)

	mu        sync.Mutex
	responses []*intent.Completion
	errs      []error
	requests  []intent.CompletionRequest
}

// NewMockModel creates a MockModel replying with responses in order.
func NewMockModel(responses ...*intent.Completion) *MockModel {
	return &MockModel{responses: responses, errs: make([]error, len(responses))}
}

// Then appends a scripted reply.
func (m *MockModel) Then(c *intent.Completion) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, c)
	m.errs = append(m.errs, nil)
	return m
}

// ThenError appends a scripted failure.
func (m *MockModel) ThenError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
	return m
}

// Complete implements intent.Model.
func (m *MockModel) Complete(ctx context.Context, req intent.CompletionRequest) (*intent.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.CompleteFunc
	if fn != nil {
		m.mu.Unlock()
		return fn(ctx, req)
	}
	defer m.mu.Unlock()

	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock model: no scripted reply for call %d", len(m.requests))
	}
	resp, err := m.responses[0], m.errs[0]
	m.responses, m.errs = m.responses[1:], m.errs[1:]
	return resp, err
}

// Calls returns how many completions were requested.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Request returns the i-th recorded request.
func (m *MockModel) Request(i int) intent.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// ToolCallCompletion is an assistant reply calling one tool.
func ToolCallCompletion(name, arguments string) *intent.Completion {
	return ToolCallsCompletion(intent.ToolCall{ID: "call_" + name, Name: name, Arguments: arguments})
}

// ToolCallsCompletion is an assistant reply calling several tools.
func ToolCallsCompletion(calls ...intent.ToolCall) *intent.Completion {
	return &intent.Completion{Message: intent.Message{Role: intent.RoleAssistant, ToolCalls: calls}}
}

// TextCompletion is an assistant reply with text content.
func TextCompletion(content string) *intent.Completion {
	return &intent.Completion{Message: intent.Message{Role: intent.RoleAssistant, Content: content}}
}

// EchoToolResult is a CompleteFunc body for the format pass: it replies with
// the last tool message, JSON strings unquoted.
func EchoToolResult(req intent.CompletionRequest) *intent.Completion {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != intent.RoleTool {
			continue
		}
		var s string
		if err := json.Unmarshal([]byte(msg.Content), &s); err == nil {
			return TextCompletion(s)
		}
		return TextCompletion(msg.Content)
	}
	return TextCompletion("")
}

// NewEchoModel replies to the classification pass with classify and echoes
// the tool result on the format pass.
func NewEchoModel(classify *intent.Completion) *MockModel {
	m := &MockModel{}
	m.CompleteFunc = func(ctx context.Context, req intent.CompletionRequest) (*intent.Completion, error) {
		if len(req.Tools) > 0 {
			return classify, nil
		}
		return EchoToolResult(req), nil
	}
	return m
}

// MockImageGenerator implements intent.ImageGenerator.
type MockImageGenerator struct {
	Image   string
	Err     error
	Prompts []string
}

// GenerateImage records the prompt and returns Image.
func (g *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	g.Prompts = append(g.Prompts, prompt)
	return g.Image, g.Err
}

// MockSpeechSynthesizer implements intent.SpeechSynthesizer.
type MockSpeechSynthesizer struct {
	Audio []byte
	Err   error
	Texts []string
}

// Synthesize records the text and returns Audio.
func (s *MockSpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.Texts = append(s.Texts, text)
	return s.Audio, s.Err
}
