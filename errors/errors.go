// Package errors provides the error taxonomy of the ACI server: typed,
// JSON-serializable errors for the HTTP surface, the fixed body returned
// when intent handling fails, and zap-integrated logging of both.
//
// Two kinds of failures reach clients:
//
//   - Rejections before dispatch (oversized body, rate limit) are written
//     with WriteError as a typed JSON object.
//   - Any failure while handling an utterance is written with
//     WriteInternalServerError, which never leaks the cause. The cause is
//     logged with LogError instead.
//
// Basic usage:
//
//	errors.ErrorWithType(w, "Request body too large", errors.ValidationError, http.StatusRequestEntityTooLarge)
//
//	errors.LogError(logger, err, requestID)
//	errors.WriteInternalServerError(w)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// Nil is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes failures. Each type maps to an HTTP status through
// its constructor.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// ModelError represents failures of the model backend
	ModelError ErrorType = "model_error"

	// ContractError represents a model reply that breaks the tool calling
	// contract (no tool call, unknown tool, malformed arguments)
	ContractError ErrorType = "contract_error"

	// HandlerError represents an intent handler rejecting a request
	HandlerError ErrorType = "handler_error"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"
)

// ACIError carries a category and request context next to the underlying
// error. It serializes to JSON for typed client responses.
type ACIError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error implements the error interface.
func (e *ACIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *ACIError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &ACIError{Type: ModelError})
// works regardless of message or request.
func (e *ACIError) Is(target error) bool {
	t, ok := target.(*ACIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON response with its status code.
func WriteError(w http.ResponseWriter, err *ACIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// internalServerErrorBody is the only body clients see when handling an
// utterance fails.
const internalServerErrorBody = `{"error":"Internal Server Error"}`

// WriteInternalServerError writes the generic 500 response.
func WriteInternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(internalServerErrorBody))
}

// Error is a drop-in replacement for http.Error that writes an ACIError of
// type InternalError, picking up the request ID from the response headers.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &ACIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
