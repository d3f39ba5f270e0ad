package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// FallbackFunctionName is the built-in intent the model calls when no
// registered intent fits. It carries only a message.
const FallbackFunctionName = "cannot_fulfill_intent"

// Request is what a handler receives for one tool call.
type Request struct {
	// Utterance is the raw input, unchanged.
	Utterance string
	// Intent is the label the handler was registered with.
	Intent string
	// Entities are the tool arguments without the metadata fields.
	Entities map[string]any
}

// Bind decodes the entities into v, typically a pointer to a struct with
// json tags matching the intent's schema.
func (r Request) Bind(v any) error {
	b, err := json.Marshal(r.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode entities: %w", err)
	}
	return nil
}

// Handler fulfills an intent. The result must be JSON serializable; it is
// handed to the model for formatting.
type Handler func(ctx context.Context, req Request) (any, error)

// Typed adapts a handler taking decoded entities of type T.
func Typed[T any](fn func(ctx context.Context, req Request, entities T) (any, error)) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		var entities T
		if err := req.Bind(&entities); err != nil {
			return nil, err
		}
		return fn(ctx, req, entities)
	}
}

type registration struct {
	label   string
	schema  Schema
	handler Handler
}

// registry maps function names to registrations. It is written at startup
// and read concurrently by requests.
type registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func newRegistry() *registry {
	return &registry{
		entries: map[string]registration{
			FallbackFunctionName: {label: FallbackFunctionName},
		},
	}
}

// set stores reg under name, replacing any previous registration. It
// reports false for the reserved fallback name.
func (r *registry) set(name string, reg registration) bool {
	if name == FallbackFunctionName {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = reg
	return true
}

func (r *registry) get(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// sortedNames must be called with mu held.
func (r *registry) sortedNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// names returns the registered function names in sorted order.
func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// tools builds one tool per registration, offering formats.
func (r *registry) tools(formats []ResponseFormat) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNames()

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		reg := r.entries[name]
		if name == FallbackFunctionName {
			tools = append(tools, Tool{
				Name:       name,
				Parameters: metadataSchema(formats, true),
			})
			continue
		}
		params, err := MergeMetadata(reg.schema, formats)
		if err != nil {
			return nil, fmt.Errorf("intent %q: %w", reg.label, err)
		}
		tools = append(tools, Tool{
			Name:        name,
			Description: reg.label,
			Parameters:  params,
		})
	}
	return tools, nil
}
