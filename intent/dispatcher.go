// Package intent routes free-text utterances to registered handlers. The
// language model does the classification: every registered intent becomes a
// callable tool, the model picks one and extracts its entities, the handler
// runs, and a second model call formats the handler's result into the
// response format requested in the utterance.
//
// A dispatcher is configured once at startup:
//
//	d, err := intent.New(intent.Config{Model: "gpt-4o-mini", Client: model})
//	d.Register("Convert name to base64", intent.Schema{
//	    Type: jsonschema.Object,
//	    Properties: map[string]jsonschema.Definition{
//	        "name": {Type: jsonschema.String},
//	    },
//	    Required: []string{"name"},
//	}, handler)
//
//	resp, err := d.Handle(ctx, "please base64 encode Alice")
//
// Handle is Classify followed by Fulfill. Callers that need the
// intermediate artifacts (chosen tools, raw arguments, handler outputs) can
// drive Classify, Invoke and Format themselves.
package intent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatch outcomes reported to the Observer.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeFallback  = "fallback"
	OutcomeError     = "error"
)

// Config is the construction-time configuration of a Dispatcher.
type Config struct {
	// Model is the model identifier sent with every completion.
	Model string
	// Temperature defaults to 0.
	Temperature float32
	// Seed defaults to 0.
	Seed int
	// MaxTokens of zero leaves the limit to the provider.
	MaxTokens int
	// ToolChoice for the classification pass, ToolChoiceRequired when empty.
	ToolChoice ToolChoice
	// Client is the model capability. Required.
	Client Model
}

// Generation holds the sampling settings of both passes. They can be swapped
// at runtime with SetGeneration.
type Generation struct {
	Model       string
	Temperature float32
	Seed        int
	MaxTokens   int
	ToolChoice  ToolChoice
}

// Observer receives dispatch telemetry.
type Observer interface {
	ObserveModelCall(pass Pass, duration time.Duration, err error)
	ObserveDispatch(intent string, format ResponseFormat, outcome string)
}

// PostProcessor cleans the text output of the format pass.
type PostProcessor interface {
	Process(format ResponseFormat, output string) string
}

// Option configures optional collaborators of a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver reports model calls and dispatch outcomes to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithPostProcessor runs p on every text output of the format pass.
func WithPostProcessor(p PostProcessor) Option {
	return func(d *Dispatcher) { d.post = p }
}

// WithImageGenerator enables the image:png format.
func WithImageGenerator(g ImageGenerator) Option {
	return func(d *Dispatcher) { d.images = g }
}

// WithSpeechSynthesizer renders audio:mp3 outputs to audio. Without one the
// format pass text is returned as is.
func WithSpeechSynthesizer(s SpeechSynthesizer) Option {
	return func(d *Dispatcher) { d.speech = s }
}

// Dispatcher owns the intent registry and runs the two-pass protocol.
// It is safe for concurrent use.
type Dispatcher struct {
	model    Model
	gen      atomic.Pointer[Generation]
	registry *registry

	logger   *zap.Logger
	observer Observer
	post     PostProcessor
	images   ImageGenerator
	speech   SpeechSynthesizer
}

// New creates a dispatcher holding only the fallback intent.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	if cfg.Client == nil {
		return nil, ErrNoModel
	}

	d := &Dispatcher{
		model:    cfg.Client,
		registry: newRegistry(),
		logger:   zap.NewNop(),
	}
	d.SetGeneration(Generation{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Seed:        cfg.Seed,
		MaxTokens:   cfg.MaxTokens,
		ToolChoice:  cfg.ToolChoice,
	})

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Generation returns the current sampling settings.
func (d *Dispatcher) Generation() Generation {
	return *d.gen.Load()
}

// SetGeneration replaces the sampling settings for subsequent requests.
func (d *Dispatcher) SetGeneration(g Generation) {
	if g.ToolChoice == "" {
		g.ToolChoice = ToolChoiceRequired
	}
	d.gen.Store(&g)
}

// Register adds an intent. The label is shown to the model and passed to
// the handler; its FunctionName is the tool name. A later registration with
// the same function name replaces the earlier one. The fallback intent
// cannot be replaced.
//
// Register panics on a label without any usable character or a nil
// handler. Schema problems surface from Tools and Handle.
func (d *Dispatcher) Register(label string, schema Schema, handler Handler) {
	name := FunctionName(label)
	if name == "" {
		panic(fmt.Sprintf("intent: invalid label %q", label))
	}
	if handler == nil {
		panic(fmt.Sprintf("intent: nil handler for %q", label))
	}

	if !d.registry.set(name, registration{label: label, schema: schema, handler: handler}) {
		d.logger.Warn("ignoring registration of the reserved fallback intent", zap.String("label", label))
		return
	}
	d.logger.Debug("intent registered", zap.String("label", label), zap.String("function", name))
}

// Intents returns the registered function names, fallback included, sorted.
func (d *Dispatcher) Intents() []string {
	return d.registry.names()
}

// Formats returns the response formats offered to the model.
func (d *Dispatcher) Formats() []ResponseFormat {
	formats := DefaultFormats
	if d.images != nil {
		formats = append(formats[:len(formats):len(formats)], FormatPNG)
	}
	return formats
}

// Tools builds the tool list of the classification pass.
func (d *Dispatcher) Tools() ([]Tool, error) {
	return d.registry.tools(d.Formats())
}

// Call is one resolved tool call of a classification.
type Call struct {
	// ID is the tool call ID the tool result must reference.
	ID string
	// Name is the function name the model called.
	Name string
	// Intent is the registered label.
	Intent string
	// Arguments is the raw JSON the model produced.
	Arguments string
	Metadata  Metadata
	// Entities are the arguments minus the metadata fields.
	Entities map[string]any
	Fallback bool
}

// Classification is the outcome of the first pass.
type Classification struct {
	Utterance string
	// Message is the assistant message carrying the tool calls, replayed
	// to the model in the format pass.
	Message Message
	Calls   []Call
}

// Format is the response format requested in the first tool call, empty
// when there is no call.
func (c *Classification) Format() ResponseFormat {
	if len(c.Calls) == 0 {
		return ""
	}
	return c.Calls[0].Metadata.ResponseFormat
}

func (c *Classification) function() string {
	if len(c.Calls) == 0 {
		return ""
	}
	return c.Calls[0].Name
}

// Fallback reports whether every call went to the fallback intent.
func (c *Classification) Fallback() bool {
	for _, call := range c.Calls {
		if !call.Fallback {
			return false
		}
	}
	return true
}

// ToolResult is the handler output for one call.
type ToolResult struct {
	Call   Call
	Output any
	// Content is the JSON encoding of Output sent to the model.
	Content string
}

// Response is the final result of handling an utterance.
type Response struct {
	Format ResponseFormat
	// Output is text, or base64 encoded data when Binary is set.
	Output string
	// Binary is set only when Output was produced by the image generator
	// or the speech synthesizer. An audio or image format without one
	// yields the format pass text.
	Binary bool
}

// Handle classifies the utterance and fulfills the chosen intents.
func (d *Dispatcher) Handle(ctx context.Context, utterance string) (*Response, error) {
	c, err := d.Classify(ctx, utterance)
	if err != nil {
		d.observeDispatch("", "", OutcomeError)
		return nil, err
	}

	resp, err := d.Fulfill(ctx, c)
	if err != nil {
		d.observeDispatch(c.function(), c.Format(), OutcomeError)
		return nil, err
	}

	outcome := OutcomeFulfilled
	if c.Fallback() {
		outcome = OutcomeFallback
	}
	d.observeDispatch(c.function(), resp.Format, outcome)
	return resp, nil
}

// Classify runs the classification pass and resolves every tool call
// against the registry.
func (d *Dispatcher) Classify(ctx context.Context, utterance string) (*Classification, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, ErrEmptyUtterance
	}

	tools, err := d.Tools()
	if err != nil {
		return nil, err
	}

	g := d.Generation()
	completion, err := d.complete(ctx, PassClassify, CompletionRequest{
		Model: g.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: parseIntentPrompt},
			{Role: RoleUser, Content: utterance},
		},
		Tools:       tools,
		ToolChoice:  g.ToolChoice,
		Temperature: g.Temperature,
		Seed:        g.Seed,
		MaxTokens:   g.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	msg := completion.Message
	msg.Role = RoleAssistant
	if len(msg.ToolCalls) == 0 {
		d.logger.Debug("classification without tool call", zap.String("content", msg.Content))
		return nil, ErrNoToolCall
	}
	msg.ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)

	c := &Classification{
		Utterance: utterance,
		Calls:     make([]Call, 0, len(msg.ToolCalls)),
	}
	for i := range msg.ToolCalls {
		tc := &msg.ToolCalls[i]
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_%d", i)
		}

		reg, ok := d.registry.get(tc.Name)
		if !ok {
			d.logger.Debug("unknown tool", zap.String("name", tc.Name), zap.String("arguments", tc.Arguments))
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)
		}

		meta, entities, err := splitArguments(tc.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", tc.Name, err)
		}
		if format, ok := ParseFormat(string(meta.ResponseFormat)); ok {
			meta.ResponseFormat = format
		} else {
			if meta.ResponseFormat != "" {
				d.logger.Warn("unknown response format, using text:plain",
					zap.String("format", string(meta.ResponseFormat)))
			}
			meta.ResponseFormat = format
		}

		c.Calls = append(c.Calls, Call{
			ID:        tc.ID,
			Name:      tc.Name,
			Intent:    reg.label,
			Arguments: tc.Arguments,
			Metadata:  meta,
			Entities:  entities,
			Fallback:  tc.Name == FallbackFunctionName,
		})
	}
	c.Message = msg

	d.logger.Debug("utterance classified",
		zap.Int("calls", len(c.Calls)),
		zap.String("function", c.Calls[0].Name),
		zap.String("format", string(c.Format())),
	)
	return c, nil
}

// Fulfill runs the handlers of a classification and formats their results.
// When every call is the fallback the first call's message is returned as
// is, without running anything.
func (d *Dispatcher) Fulfill(ctx context.Context, c *Classification) (*Response, error) {
	if len(c.Calls) == 0 {
		return nil, ErrNoToolCall
	}
	if c.Fallback() {
		first := c.Calls[0]
		d.logger.Info("intent cannot be fulfilled", zap.String("message", first.Metadata.Message))
		return &Response{Format: first.Metadata.ResponseFormat, Output: first.Metadata.Message}, nil
	}

	results, err := d.Invoke(ctx, c)
	if err != nil {
		return nil, err
	}
	return d.Format(ctx, c, results)
}

// Invoke runs the handler of every non-fallback call. Fallback calls yield
// their message as output. Results are in call order; the first handler
// error cancels the others. Every call is resolved before any handler
// starts.
func (d *Dispatcher) Invoke(ctx context.Context, c *Classification) ([]ToolResult, error) {
	if len(c.Calls) == 0 {
		return nil, ErrNoToolCall
	}

	results := make([]ToolResult, len(c.Calls))
	regs := make([]registration, len(c.Calls))
	for i, call := range c.Calls {
		results[i].Call = call
		if call.Fallback {
			results[i].Output = call.Metadata.Message
			continue
		}
		reg, ok := d.registry.get(call.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
		}
		regs[i] = reg
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range c.Calls {
		if call.Fallback {
			continue
		}
		reg := regs[i]
		req := Request{Utterance: c.Utterance, Intent: reg.label, Entities: call.Entities}

		g.Go(func() error {
			out, err := runHandler(gctx, reg.handler, req)
			if err != nil {
				return &HandlerError{Intent: reg.label, Err: err}
			}
			results[i].Output = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range results {
		b, err := json.Marshal(results[i].Output)
		if err != nil {
			return nil, &HandlerError{Intent: results[i].Call.Intent, Err: fmt.Errorf("encode result: %w", err)}
		}
		results[i].Content = string(b)
	}
	return results, nil
}

// runHandler turns a handler panic into an error: handlers may run on
// errgroup goroutines where nothing upstream can recover.
func runHandler(ctx context.Context, h Handler, req Request) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, req)
}

// Format runs the format pass over the handler results.
func (d *Dispatcher) Format(ctx context.Context, c *Classification, results []ToolResult) (*Response, error) {
	if len(c.Calls) == 0 {
		return nil, ErrNoToolCall
	}
	format := c.Format()
	structuredSchema := c.Calls[0].Metadata.StructuredSchema

	system := formatResponsePrompt(format, structuredSchema)
	renderImage := format == FormatPNG && d.images != nil
	if renderImage {
		system = imagePrompt
	}

	messages := make([]Message, 0, 3+len(results))
	messages = append(messages,
		Message{Role: RoleSystem, Content: system},
		Message{Role: RoleUser, Content: c.Utterance},
		c.Message,
	)
	for _, r := range results {
		messages = append(messages, Message{Role: RoleTool, Content: r.Content, ToolCallID: r.Call.ID})
	}

	g := d.Generation()
	completion, err := d.complete(ctx, PassFormat, CompletionRequest{
		Model:       g.Model,
		Messages:    messages,
		Temperature: g.Temperature,
		Seed:        g.Seed,
		MaxTokens:   g.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	output := completion.Message.Content
	binary := false

	switch {
	case renderImage:
		image, err := d.images.GenerateImage(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("generate image: %w", err)
		}
		output = image
		binary = true
	case format == FormatMP3 && d.speech != nil:
		audio, err := d.speech.Synthesize(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("synthesize speech: %w", err)
		}
		output = base64.StdEncoding.EncodeToString(audio)
		binary = true
	case d.post != nil:
		output = d.post.Process(format, output)
	}

	return &Response{Format: format, Output: output, Binary: binary}, nil
}

func (d *Dispatcher) complete(ctx context.Context, pass Pass, req CompletionRequest) (*Completion, error) {
	start := time.Now()
	completion, err := d.model.Complete(ctx, req)
	if err == nil && completion == nil {
		err = fmt.Errorf("empty completion")
	}
	if d.observer != nil {
		d.observer.ObserveModelCall(pass, time.Since(start), err)
	}
	if err != nil {
		d.logger.Error("model call failed", zap.String("pass", string(pass)), zap.Error(err))
		return nil, &ModelError{Pass: pass, Err: err}
	}
	return completion, nil
}

func (d *Dispatcher) observeDispatch(function string, format ResponseFormat, outcome string) {
	if d.observer != nil {
		d.observer.ObserveDispatch(function, format, outcome)
	}
}
