package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// DefaultWeatherURL is the Open-Meteo forecast endpoint.
const DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

// WeatherConfig configures the forecast client. Zero values take defaults.
type WeatherConfig struct {
	BaseURL      string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	CacheSize    int
	CacheTTL     time.Duration
}

func (c WeatherConfig) withDefaults() WeatherConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultWeatherURL
	}
	if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.RetryWaitMin == 0 {
		c.RetryWaitMin = 200 * time.Millisecond
	}
	if c.RetryWaitMax == 0 {
		c.RetryWaitMax = 5 * time.Second
	}
	if c.CacheSize == 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}

// CurrentWeather is the current_weather block of a forecast.
type CurrentWeather struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
}

type Forecast struct {
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Timezone       string         `json:"timezone,omitempty"`
	CurrentWeather CurrentWeather `json:"current_weather"`
}

// WeatherClient fetches current conditions, retrying transient failures and
// caching results per coordinate.
type WeatherClient struct {
	baseURL string
	http    *http.Client
	cache   *expirable.LRU[string, *Forecast]
	logger  *zap.Logger
}

func NewWeatherClient(cfg WeatherConfig, logger *zap.Logger) *WeatherClient {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = stopOnCancel(retryablehttp.DefaultRetryPolicy)
	retryClient.Logger = leveledLogger{logger.Sugar()}

	return &WeatherClient{
		baseURL: cfg.BaseURL,
		http:    retryClient.StandardClient(),
		cache:   expirable.NewLRU[string, *Forecast](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:  logger,
	}
}

// stopOnCancel never retries once the caller has given up.
func stopOnCancel(policy retryablehttp.CheckRetry) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return policy(ctx, resp, err)
	}
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lng)
}

// Current returns the current weather at lat, lng.
func (c *WeatherClient) Current(ctx context.Context, lat, lng float64) (*Forecast, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("coordinates out of range: %v, %v", lat, lng)
	}

	key := cacheKey(lat, lng)
	if f, ok := c.cache.Get(key); ok {
		c.logger.Debug("Weather cache hit", zap.String("key", key))
		return f, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse weather url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("current_weather", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch weather: unexpected status %d", resp.StatusCode)
	}

	var f Forecast
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}

	c.cache.Add(key, &f)
	return &f, nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
