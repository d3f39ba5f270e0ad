package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler recovers panics from next, logs them and answers with the
// generic 500 response.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String("request_id", w.Header().Get("X-Request-ID")),
					)
					WriteInternalServerError(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context. ACIErrors anywhere in the chain
// contribute their type and details.
func LogError(logger *zap.Logger, err error, requestID string) {
	var aciErr *ACIError
	if As(err, &aciErr) {
		logger.Error("request error",
			zap.String("error_type", string(aciErr.Type)),
			zap.String("message", aciErr.Message),
			zap.Int("code", aciErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", aciErr.Details),
			zap.Error(aciErr.Unwrap()),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
