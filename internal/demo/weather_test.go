package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const forecastBody = `{
	"latitude": 48.86,
	"longitude": 2.35,
	"timezone": "GMT",
	"current_weather": {"time": "2024-05-01T12:00", "temperature": 17.5, "windspeed": 9.4, "winddirection": 240, "weathercode": 3}
}`

func newWeatherServer(t *testing.T, handler http.HandlerFunc) (*WeatherClient, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewWeatherClient(WeatherConfig{
		BaseURL:      srv.URL + "/v1/forecast",
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, zaptest.NewLogger(t))
	return client, &hits
}

func TestWeatherCurrent(t *testing.T) {
	client, hits := newWeatherServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "48.8566", r.URL.Query().Get("latitude"))
		assert.Equal(t, "2.3522", r.URL.Query().Get("longitude"))
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	})

	f, err := client.Current(context.Background(), 48.8566, 2.3522)
	require.NoError(t, err)
	assert.Equal(t, 17.5, f.CurrentWeather.Temperature)
	assert.Equal(t, 3, f.CurrentWeather.WeatherCode)

	// Same rounded coordinate is served from the cache.
	_, err = client.Current(context.Background(), 48.8571, 2.3519)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWeatherRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newWeatherServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(forecastBody))
	})

	f, err := client.Current(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 48.86, f.Latitude)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWeatherErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		lat     float64
		wantErr string
	}{
		{name: "gives up after retries", status: http.StatusBadGateway, lat: 10, wantErr: "fetch weather"},
		{name: "client error", status: http.StatusBadRequest, lat: 10, wantErr: "unexpected status 400"},
		{name: "bad body", status: http.StatusOK, body: "not json", lat: 10, wantErr: "decode weather"},
		{name: "out of range", status: http.StatusOK, body: forecastBody, lat: 91, wantErr: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newWeatherServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Current(context.Background(), tt.lat, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWeatherIntent(t *testing.T) {
	client, _ := newWeatherServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(forecastBody))
	})
	r := newRegistrar(t, NewRepository(), client)
	require.Contains(t, r.schemas, "Check the weather")
	assert.Equal(t, []string{"lat", "lng"}, r.schemas["Check the weather"].Required)

	out, err := call(t, r, "Check the weather", map[string]any{"lat": 48.86, "lng": 2.35})
	require.NoError(t, err)
	f, ok := out.(*Forecast)
	require.True(t, ok)
	assert.Equal(t, 9.4, f.CurrentWeather.WindSpeed)
}
