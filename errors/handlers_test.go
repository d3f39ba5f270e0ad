package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		handler      http.Handler
		expectedCode int
		expectedBody string
	}{
		{
			name: "normal handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
			expectedCode: http.StatusOK,
		},
		{
			name: "panicking handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			}),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", nil)
			rr := httptest.NewRecorder()

			ErrorHandler(logger)(tt.handler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedCode {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedCode)
			}
			if tt.expectedBody != "" && rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned wrong body: got %s want %s", rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	LogError(logger, NewContractError("req-1", "no tool call", errors.New("empty")), "req-1")
	LogError(logger, errors.New("plain"), "req-2")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "request error" {
		t.Errorf("unexpected message: %s", entries[0].Message)
	}
	if got := entries[0].ContextMap()["error_type"]; got != string(ContractError) {
		t.Errorf("unexpected error_type: %v", got)
	}
	if entries[1].Message != "unexpected error" {
		t.Errorf("unexpected message: %s", entries[1].Message)
	}
}
