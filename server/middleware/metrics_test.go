package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/teilomillet/aci/server/metrics"
	"github.com/teilomillet/aci/server/middleware"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedCode   int
		expectedStatus string
		errorType      string
	}{
		{
			name: "success request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			expectedCode:   http.StatusOK,
			expectedStatus: "200",
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
			},
			expectedCode:   http.StatusRequestEntityTooLarge,
			expectedStatus: "413",
			errorType:      "client_error",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedCode:   http.StatusInternalServerError,
			expectedStatus: "500",
			errorType:      "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewMetrics()

			r := chi.NewRouter()
			r.Use(middleware.PrometheusMetrics(m))
			r.Post("/projects/{name}", tt.handler)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/alpha", nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, float64(1), testutil.ToFloat64(
				m.RequestsTotal.WithLabelValues("/projects/{name}", tt.expectedStatus)))
			assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveRequests.WithLabelValues("all")))
			if tt.errorType != "" {
				assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.errorType)))
			}
		})
	}
}

func TestPrometheusMetricsOutsideRouter(t *testing.T) {
	m := metrics.NewMetrics()
	handler := middleware.PrometheusMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/health", "200")))
}
