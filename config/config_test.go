package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadValidConfig(t *testing.T) {
	yamlConfig := `
server:
  port: 9090
  read_timeout: 45s
  max_body_bytes: 4096
  cors_origins: ["https://example.com"]

llm:
  provider: openai
  model: gpt-4o
  temperature: 0.2
  seed: 7
  max_tokens: 512
  speech_model: tts-1

logging:
  level: debug
  format: text
`

	config, err := Load(strings.NewReader(yamlConfig))
	if err != nil {
		t.Fatalf("Failed to load valid config: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("unexpected port: got %d, want %d", config.Server.Port, 9090)
	}
	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("unexpected read timeout: got %v, want %v", config.Server.ReadTimeout, 45*time.Second)
	}
	if config.Server.MaxBodyBytes != 4096 {
		t.Errorf("unexpected max body bytes: got %d, want 4096", config.Server.MaxBodyBytes)
	}
	if len(config.Server.CORSOrigins) != 1 {
		t.Errorf("unexpected cors origins: %v", config.Server.CORSOrigins)
	}

	if config.LLM.Model != "gpt-4o" {
		t.Errorf("unexpected model: got %s, want %s", config.LLM.Model, "gpt-4o")
	}
	if config.LLM.Temperature != 0.2 {
		t.Errorf("unexpected temperature: got %v, want 0.2", config.LLM.Temperature)
	}
	if config.LLM.Seed != 7 || config.LLM.MaxTokens != 512 {
		t.Errorf("unexpected seed/max tokens: %d/%d", config.LLM.Seed, config.LLM.MaxTokens)
	}
	if config.LLM.ToolChoice != "required" {
		t.Errorf("tool choice should keep its default, got %s", config.LLM.ToolChoice)
	}

	if config.Logging.Level != "debug" || config.Logging.Format != "text" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}

	// Untouched sections keep their defaults
	if config.Server.WriteTimeout != 120*time.Second {
		t.Errorf("write timeout should keep default, got %v", config.Server.WriteTimeout)
	}
	if config.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("failure threshold should keep default, got %d", config.CircuitBreaker.FailureThreshold)
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty document should load defaults: %v", err)
	}
	if config.LLM.Temperature != 0 || config.LLM.Seed != 0 {
		t.Errorf("generation defaults should be zero, got %v/%d", config.LLM.Temperature, config.LLM.Seed)
	}
	if config.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("unexpected default max body bytes %d", config.Server.MaxBodyBytes)
	}
	if rf := config.Processing.ResponseFormatting; rf.CleanFences || rf.TrimWhitespace || rf.MaxLength != 0 {
		t.Errorf("format-pass output should be untouched by default, got %+v", rf)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name: "invalid port",
			config: `
server:
  port: -1
`,
			want: "Port",
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: invalid
`,
			want: "Level",
		},
		{
			name: "unknown provider",
			config: `
llm:
  provider: bedrock
`,
			want: "Provider",
		},
		{
			name: "empty model",
			config: `
llm:
  model: ""
`,
			want: "Model",
		},
		{
			name: "invalid tool choice",
			config: `
llm:
  tool_choice: none
`,
			want: "ToolChoice",
		},
		{
			name: "removed path setting",
			config: `
server:
  path: /intents
`,
			want: "field path not found",
		},
		{
			name: "gollm without backend",
			config: `
llm:
  provider: gollm
  model: llama3
`,
			want: "llm.backend is required",
		},
		{
			name: "speech with gollm",
			config: `
llm:
  provider: gollm
  backend: ollama
  model: llama3
  speech_model: tts-1
`,
			want: "require the openai provider",
		},
		{
			name: "rate limit without window",
			config: `
server:
  rate_limit:
    enabled: true
    window: 0s
`,
			want: "rate limit window",
		},
		{
			name: "unknown field",
			config: `
routes:
  - path: /
`,
			want: "field routes not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			if err == nil {
				t.Error("expected error, got nil")
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("unexpected error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if config.Server.Port != 7070 {
		t.Errorf("unexpected port: got %d, want 7070", config.Server.Port)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
