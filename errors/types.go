package errors

import (
	"net/http"
)

// NewError creates a new ACIError with full control over its fields.
// Prefer the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ACIError {
	return &ACIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error, for requests rejected
// before they reach the dispatcher:
//   - Empty or oversized utterances
//   - Utterances above the token limit
//
// Example:
//
//	err := NewValidationError("req_123", "Utterance too long", map[string]interface{}{
//	    "tokens": 9000,
//	    "limit":  4096,
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *ACIError {
	return &ACIError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitError creates a rate limit error. retryAfter is in seconds.
func NewRateLimitError(requestID string, retryAfter int) *ACIError {
	return &ACIError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewModelError wraps a failed call to the model backend.
func NewModelError(requestID string, message string, err error) *ACIError {
	return &ACIError{
		Type:      ModelError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewContractError wraps a model reply that cannot be dispatched.
func NewContractError(requestID string, message string, err error) *ACIError {
	return &ACIError{
		Type:      ContractError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewHandlerError wraps an intent handler failure.
func NewHandlerError(requestID, intent string, err error) *ACIError {
	return &ACIError{
		Type:      HandlerError,
		Message:   "Intent handler failed",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details: map[string]interface{}{
			"intent": intent,
		},
		err: err,
	}
}

// NewInternalError creates an internal server error for anything not
// covered by the other types, panics included.
func NewInternalError(requestID string, err error) *ACIError {
	return &ACIError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
