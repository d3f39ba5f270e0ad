package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *ACIError
		wantType ErrorType
		wantCode int
	}{
		{"validation", NewValidationError("r", "bad", nil), ValidationError, http.StatusBadRequest},
		{"rate limit", NewRateLimitError("r", 5), RateLimitError, http.StatusTooManyRequests},
		{"model", NewModelError("r", "down", cause), ModelError, http.StatusBadGateway},
		{"contract", NewContractError("r", "no tool", cause), ContractError, http.StatusBadGateway},
		{"handler", NewHandlerError("r", "create_a_project", cause), HandlerError, http.StatusInternalServerError},
		{"internal", NewInternalError("r", cause), InternalError, http.StatusInternalServerError},
		{"generic", NewError(ConfigError, "bad config", 500, "r", nil, cause), ConfigError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, tt.err.Type)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, tt.err.Code)
			}
			if tt.err.RequestID != "r" {
				t.Errorf("expected request id r, got %s", tt.err.RequestID)
			}
		})
	}
}

func TestNewHandlerError_Details(t *testing.T) {
	err := NewHandlerError("r", "add_task_to_a_project", errors.New("project not found"))
	if err.Details["intent"] != "add_task_to_a_project" {
		t.Errorf("expected intent detail, got %v", err.Details)
	}
}
