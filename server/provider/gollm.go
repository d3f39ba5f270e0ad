package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"

	"github.com/teilomillet/aci/intent"
)

// Verify at compile time that Gollm implements intent.Model
var _ intent.Model = (*Gollm)(nil)

// toolSelectionPrompt is appended to the system prompt when tools are
// offered to a provider without native tool calling.
const toolSelectionPrompt = `

You can call exactly one of the following tools:
%s
Reply with a single JSON object and nothing else, in the form:
{"tool": "<tool name>", "arguments": {<arguments matching the tool parameters>}}`

// Gollm drives any gollm provider. Tool selection is done by describing
// the tools in the system prompt and parsing a JSON reply, so it works with
// models that have no function calling support.
type Gollm struct {
	llm    gollm.LLM
	logger *zap.Logger

	// gollm options are set on the shared client; mu serializes changes.
	mu      sync.Mutex
	applied *generationOptions
}

type generationOptions struct {
	temperature float32
	seed        int
	maxTokens   int
}

// NewGollm wraps a gollm client.
func NewGollm(llm gollm.LLM, logger *zap.Logger) *Gollm {
	return &Gollm{llm: llm, logger: logger}
}

// Complete implements intent.Model.
func (g *Gollm) Complete(ctx context.Context, req intent.CompletionRequest) (*intent.Completion, error) {
	g.applyOptions(generationOptions{
		temperature: req.Temperature,
		seed:        req.Seed,
		maxTokens:   req.MaxTokens,
	})

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gollm generate: %w", err)
	}

	if len(req.Tools) == 0 || req.ToolChoice == intent.ToolChoiceNone {
		return &intent.Completion{Message: intent.Message{Role: intent.RoleAssistant, Content: text}}, nil
	}
	return g.parseToolCall(req.Tools, text)
}

func (g *Gollm) applyOptions(opts generationOptions) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.applied != nil && *g.applied == opts {
		return
	}
	g.llm.SetOption("temperature", float64(opts.temperature))
	g.llm.SetOption("seed", opts.seed)
	if opts.maxTokens > 0 {
		g.llm.SetOption("max_tokens", opts.maxTokens)
	}
	g.applied = &opts
}

// toolReply is the JSON shape requested from the model.
type toolReply struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCall turns the model's JSON reply into a tool call. A reply
// that is not a tool call comes back as plain content; the dispatcher
// treats that as a missing tool call.
func (g *Gollm) parseToolCall(tools []intent.Tool, text string) (*intent.Completion, error) {
	cleaned := gollm.CleanResponse(text)

	var reply toolReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil || reply.Tool == "" {
		g.logger.Debug("reply is not a tool call", zap.String("reply", text))
		return &intent.Completion{Message: intent.Message{Role: intent.RoleAssistant, Content: text}}, nil
	}

	args := strings.TrimSpace(string(reply.Arguments))
	if args == "" || args == "null" {
		args = "{}"
	}

	// Schema misses are logged and left to the dispatcher.
	for _, tool := range tools {
		if tool.Name != reply.Tool {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(args), &decoded); err != nil || !jsonschema.Validate(tool.Parameters, decoded) {
			g.logger.Debug("tool arguments do not match the parameters",
				zap.String("tool", reply.Tool),
				zap.String("arguments", args),
			)
		}
		break
	}

	return &intent.Completion{Message: intent.Message{
		Role: intent.RoleAssistant,
		ToolCalls: []intent.ToolCall{{
			ID:        "call_" + uuid.NewString(),
			Name:      reply.Tool,
			Arguments: args,
		}},
	}}, nil
}

// buildPrompt flattens the chat into gollm prompt messages. Tool traffic is
// rendered as text since gollm prompts have no tool roles.
func buildPrompt(req intent.CompletionRequest) (*gollm.Prompt, error) {
	catalogue := ""
	if len(req.Tools) > 0 && req.ToolChoice != intent.ToolChoiceNone {
		var b strings.Builder
		for _, tool := range req.Tools {
			params, err := tool.MarshalParameters()
			if err != nil {
				return nil, fmt.Errorf("encode parameters of %q: %w", tool.Name, err)
			}
			fmt.Fprintf(&b, "- %s", tool.Name)
			if tool.Description != "" {
				fmt.Fprintf(&b, ": %s", tool.Description)
			}
			fmt.Fprintf(&b, "\n  parameters: %s\n", params)
		}
		catalogue = fmt.Sprintf(toolSelectionPrompt, b.String())
	}

	messages := make([]gollm.PromptMessage, 0, len(req.Messages)+1)
	systemSeen := false
	for _, msg := range req.Messages {
		switch msg.Role {
		case intent.RoleSystem:
			messages = append(messages, gollm.PromptMessage{Role: "system", Content: msg.Content + catalogue})
			systemSeen = true
		case intent.RoleAssistant:
			content := msg.Content
			for _, tc := range msg.ToolCalls {
				content += fmt.Sprintf("\nCalled tool %s (%s) with arguments %s", tc.Name, tc.ID, tc.Arguments)
			}
			messages = append(messages, gollm.PromptMessage{Role: "assistant", Content: strings.TrimSpace(content)})
		case intent.RoleTool:
			messages = append(messages, gollm.PromptMessage{
				Role:    "user",
				Content: fmt.Sprintf("Result of tool call %s: %s", msg.ToolCallID, msg.Content),
			})
		default:
			messages = append(messages, gollm.PromptMessage{Role: "user", Content: msg.Content})
		}
	}
	if !systemSeen && catalogue != "" {
		messages = append([]gollm.PromptMessage{{Role: "system", Content: strings.TrimSpace(catalogue)}}, messages...)
	}

	return &gollm.Prompt{Messages: messages}, nil
}
