package intent

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToolCall is returned when the classification reply carries no
	// tool call. The fallback tool always fits, so this is a model contract
	// violation.
	ErrNoToolCall = errors.New("intent: model did not call any tool")

	// ErrUnknownTool is returned when the model calls a tool that is not
	// registered.
	ErrUnknownTool = errors.New("intent: model called an unregistered tool")

	// ErrSchemaConflict is returned when an entity schema cannot be merged
	// with the metadata fields.
	ErrSchemaConflict = errors.New("intent: entity schema conflicts with metadata fields")

	// ErrEmptyUtterance is returned by Handle and Classify for blank input.
	ErrEmptyUtterance = errors.New("intent: empty utterance")

	// ErrNoModel is returned by New without a model client.
	ErrNoModel = errors.New("intent: no model client configured")
)

// Pass identifies one of the two model round trips.
type Pass string

const (
	PassClassify Pass = "classify"
	PassFormat   Pass = "format"
)

// ModelError wraps a failed model call.
type ModelError struct {
	Pass Pass
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("intent: %s pass: %v", e.Pass, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// HandlerError wraps a rejection from an intent handler.
type HandlerError struct {
	Intent string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("intent: handler %q: %v", e.Intent, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ArgumentsError reports tool arguments that are not a JSON object.
type ArgumentsError struct {
	Arguments string
	Err       error
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("intent: malformed tool arguments: %v", e.Err)
}

func (e *ArgumentsError) Unwrap() error { return e.Err }
