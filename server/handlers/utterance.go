// Package handlers provides the HTTP handlers of the ACI server.
//
// The utterance handler is the whole public surface: the raw request body
// is the utterance, and the response is whatever the dispatcher produced,
// with a content type derived from its response format. Failures during
// dispatch never leak their cause to the client; they are logged and
// answered with the generic 500 body.
package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/teilomillet/aci/errors"
	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/server/middleware"
	"github.com/teilomillet/aci/server/validation"
)

// Dispatcher handles utterances. *intent.Dispatcher implements it.
type Dispatcher interface {
	Handle(ctx context.Context, utterance string) (*intent.Response, error)
}

// UtteranceHandler serves utterances.
type UtteranceHandler struct {
	dispatcher Dispatcher
	validator  *validation.Validator
	logger     *zap.Logger
}

// NewUtteranceHandler creates the utterance handler.
func NewUtteranceHandler(dispatcher Dispatcher, validator *validation.Validator, logger *zap.Logger) *UtteranceHandler {
	return &UtteranceHandler{
		dispatcher: dispatcher,
		validator:  validator,
		logger:     logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *UtteranceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	utterance, err := h.validator.ReadUtterance(w, r)
	if err != nil {
		var aciErr *errors.ACIError
		if errors.As(err, &aciErr) {
			h.logger.Info("Utterance rejected",
				zap.String("request_id", requestID),
				zap.String("reason", aciErr.Message),
			)
			errors.WriteError(w, aciErr)
			return
		}
		errors.LogError(h.logger, err, requestID)
		errors.WriteInternalServerError(w)
		return
	}

	resp, err := h.dispatcher.Handle(r.Context(), utterance)
	if err != nil {
		errors.LogError(h.logger, classify(requestID, err), requestID)
		errors.WriteInternalServerError(w)
		return
	}

	contentType, body := Render(resp)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

// classify attaches an error type to a dispatch failure for logging.
func classify(requestID string, err error) error {
	var (
		modelErr   *intent.ModelError
		handlerErr *intent.HandlerError
		argsErr    *intent.ArgumentsError
	)
	switch {
	case errors.As(err, &modelErr):
		return errors.NewModelError(requestID, "Model call failed during "+string(modelErr.Pass)+" pass", err)
	case errors.As(err, &handlerErr):
		return errors.NewHandlerError(requestID, handlerErr.Intent, err)
	case errors.As(err, &argsErr),
		errors.Is(err, intent.ErrNoToolCall),
		errors.Is(err, intent.ErrUnknownTool):
		return errors.NewContractError(requestID, "Model reply cannot be dispatched", err)
	case errors.Is(err, intent.ErrEmptyUtterance):
		return errors.NewValidationError(requestID, "Empty utterance", nil)
	case errors.Is(err, context.Canceled):
		return errors.NewError(errors.InternalError, "Request canceled", 499, requestID, nil, err)
	default:
		return errors.NewInternalError(requestID, err)
	}
}
