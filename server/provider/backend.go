// Package provider builds the model capabilities the intent dispatcher runs
// on: an OpenAI adapter with native tool calling, image and speech support,
// a gollm adapter for every other provider, and a circuit breaker around
// whichever is configured.
package provider

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"

	"github.com/teilomillet/aci/config"
	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/server/circuitbreaker"
)

// Backend bundles the configured capabilities.
type Backend struct {
	Model  intent.Model
	Images intent.ImageGenerator
	Speech intent.SpeechSynthesizer

	guarded *Guarded
}

// New builds the backend described by cfg. Breaker metrics are registered
// with registry when it is not nil.
func New(cfg *config.Config, logger *zap.Logger, registry prometheus.Registerer) (*Backend, error) {
	b := &Backend{}

	switch cfg.LLM.Provider {
	case "openai":
		o := NewOpenAI(OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			ImageModel:  cfg.LLM.ImageModel,
			SpeechModel: cfg.LLM.SpeechModel,
			Voice:       cfg.LLM.Voice,
		})
		b.Model = o
		if o.HasImages() {
			b.Images = o
		}
		if o.HasSpeech() {
			b.Speech = o
		}
	case "gollm":
		llm, err := createLLM(cfg.LLM)
		if err != nil {
			return nil, err
		}
		b.Model = NewGollm(llm, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}

	logger.Info("Model backend configured",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("images", b.Images != nil),
		zap.Bool("speech", b.Speech != nil),
	)

	return b.withBreaker(cfg.CircuitBreaker, logger, registry), nil
}

// Wrap builds a backend around an existing model, e.g. a test double.
func Wrap(model intent.Model, cfg config.CircuitBreakerConfig, logger *zap.Logger, registry prometheus.Registerer) *Backend {
	return (&Backend{Model: model}).withBreaker(cfg, logger, registry)
}

func (b *Backend) withBreaker(cfg config.CircuitBreakerConfig, logger *zap.Logger, registry prometheus.Registerer) *Backend {
	if cfg.FailureThreshold == 0 {
		return b
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "model",
		FailureThreshold: cfg.FailureThreshold,
		Timeout:          cfg.Timeout,
		Interval:         cfg.Interval,
		MaxRequests:      cfg.MaxRequests,
	}, logger, registry)
	b.guarded = NewGuarded(b.Model, breaker)
	b.Model = b.guarded
	return b
}

// Options returns the dispatcher options for the optional capabilities.
func (b *Backend) Options() []intent.Option {
	var opts []intent.Option
	if b.Images != nil {
		opts = append(opts, intent.WithImageGenerator(b.Images))
	}
	if b.Speech != nil {
		opts = append(opts, intent.WithSpeechSynthesizer(b.Speech))
	}
	return opts
}

// BreakerState reports the circuit breaker state, "disabled" without one.
func (b *Backend) BreakerState() string {
	if b.guarded == nil {
		return "disabled"
	}
	return b.guarded.State().String()
}

// Healthy is false while the breaker is open.
func (b *Backend) Healthy() bool {
	return b.guarded == nil || b.guarded.State() != gobreaker.StateOpen
}

func createLLM(cfg config.LLMConfig) (gollm.LLM, error) {
	var (
		llm gollm.LLM
		err error
	)
	if cfg.APIKey != "" {
		llm, err = gollm.NewLLM(
			gollm.SetProvider(cfg.Backend),
			gollm.SetModel(cfg.Model),
			gollm.SetAPIKey(cfg.APIKey),
		)
	} else {
		llm, err = gollm.NewLLM(
			gollm.SetProvider(cfg.Backend),
			gollm.SetModel(cfg.Model),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("create LLM: %w", err)
	}

	if cfg.Backend == "ollama" && cfg.BaseURL != "" {
		if err := llm.SetOllamaEndpoint(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("set ollama endpoint: %w", err)
		}
	}
	return llm, nil
}

// Generation derives the dispatcher sampling settings from cfg.
func Generation(cfg config.LLMConfig) intent.Generation {
	return intent.Generation{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Seed:        cfg.Seed,
		MaxTokens:   cfg.MaxTokens,
		ToolChoice:  intent.ToolChoice(cfg.ToolChoice),
	}
}
