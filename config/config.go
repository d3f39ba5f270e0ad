// Package config provides configuration management for the ACI server.
// It covers the HTTP front-end, the model backend used for intent
// classification and fulfillment, circuit breaking, output processing
// and logging.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Logging        LoggingConfig        `yaml:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Processing     ProcessingConfig     `yaml:"processing"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout bounds response writes. Model round trips happen before
	// the first byte is written, so keep this generous (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	// MaxBodyBytes caps the utterance body size (default: 1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// MaxUtteranceTokens rejects utterances above this token count.
	// Zero disables the check.
	MaxUtteranceTokens int `yaml:"max_utterance_tokens" validate:"gte=0"`

	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`

	// RateLimit is an optional per-client limiter, off by default.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-IP token bucket.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit" validate:"gte=0"`
	Window  time.Duration `yaml:"window" validate:"gte=0"`
}

// LLMConfig holds the model backend configuration.
type LLMConfig struct {
	// Provider selects the backend adapter: "openai" talks to any
	// OpenAI-compatible chat completions API with native tool calling,
	// "gollm" drives any gollm provider through JSON tool selection.
	Provider string `yaml:"provider" validate:"required,oneof=openai gollm"`

	// Backend is the gollm provider name (e.g. "ollama", "anthropic").
	// Only used when Provider is "gollm".
	Backend string `yaml:"backend"`

	// Model is the name of the chat model to use
	Model string `yaml:"model" validate:"required"`

	// APIKey is the authentication key for the provider's API
	// Use environment variables (e.g., ${OPENAI_API_KEY}) for secure configuration
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// Temperature is the sampling temperature for both passes (default: 0)
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// Seed is the sampling seed for both passes (default: 0)
	Seed int `yaml:"seed"`

	// MaxTokens caps generated tokens. Zero leaves it to the provider.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`

	// ToolChoice is the classification tool choice mode (default: required)
	ToolChoice string `yaml:"tool_choice" validate:"oneof=required auto"`

	// ImageModel enables image:png outputs when set (openai provider only)
	ImageModel string `yaml:"image_model"`

	// SpeechModel enables audio:mp3 synthesis when set (openai provider only)
	SpeechModel string `yaml:"speech_model"`

	// Voice is the speech voice (default: alloy)
	Voice string `yaml:"voice"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// CircuitBreakerConfig guards the model backend.
type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit.
	// Zero disables the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns the configuration used when no file is given and
// the base every file is decoded on top of.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit: RateLimitConfig{
				Enabled: false,
				Limit:   60,
				Window:  time.Minute,
			},
		},

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Temperature: 0,
			Seed:        0,
			ToolChoice:  "required",
			Voice:       "alloy",
		},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. A default
// applies when the variable is unset or empty.
func expandEnvVars(s string) (string, error) {
	if err := checkBraces(s); err != nil {
		return "", err
	}

	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}), nil
}

// checkBraces rejects an opened ${ reference that is never closed.
func checkBraces(s string) error {
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '$' || s[i+1] != '{' {
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return fmt.Errorf("unterminated variable reference at offset %d", i)
		}
		i += end
	}
	return nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// An empty document leaves the defaults untouched.
	if strings.TrimSpace(expandedData) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expandedData))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.LLM.Provider == "gollm" {
		if c.LLM.Backend == "" {
			return fmt.Errorf("llm.backend is required when provider is gollm")
		}
		if c.LLM.ImageModel != "" || c.LLM.SpeechModel != "" {
			return fmt.Errorf("image and speech models require the openai provider")
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Limit <= 0 {
			return fmt.Errorf("rate limit must be positive when enabled: %d", c.Server.RateLimit.Limit)
		}
		if c.Server.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive when enabled: %v", c.Server.RateLimit.Window)
		}
	}

	if c.Processing.ResponseFormatting.MaxLength < 0 {
		return fmt.Errorf("negative max length: %d", c.Processing.ResponseFormatting.MaxLength)
	}

	return nil
}
