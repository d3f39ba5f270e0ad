package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/aci/intent"
)

func TestObserveModelCall(t *testing.T) {
	m := NewMetrics()

	m.ObserveModelCall(intent.PassClassify, 120*time.Millisecond, nil)
	m.ObserveModelCall(intent.PassFormat, 80*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, float64(0), testutil.ToFloat64(m.ModelCallErrors.WithLabelValues("classify")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModelCallErrors.WithLabelValues("format")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ModelCallDuration))
}

func TestObserveDispatch(t *testing.T) {
	m := NewMetrics()

	m.ObserveDispatch("convert_name_to_base64", intent.FormatTextPlain, intent.OutcomeFulfilled)
	m.ObserveDispatch("convert_name_to_base64", intent.FormatTextPlain, intent.OutcomeFulfilled)
	m.ObserveDispatch("", intent.FormatTextPlain, intent.OutcomeError)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.DispatchTotal.WithLabelValues("convert_name_to_base64", "text:plain", "fulfilled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.DispatchTotal.WithLabelValues("none", "text:plain", "error")))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveDispatch("check_status_of_a_project", intent.FormatJSON, intent.OutcomeFulfilled)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "aci_dispatch_total")
	assert.Contains(t, body, `intent="check_status_of_a_project"`)
	assert.Contains(t, body, "aci_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}
