package config

// ProcessingConfig defines the configuration for output processing
type ProcessingConfig struct {
	// ResponseFormatting configures how format pass outputs are cleaned
	ResponseFormatting ResponseFormattingConfig `yaml:"response_formatting"`
}

// ResponseFormattingConfig defines response formatting options
type ResponseFormattingConfig struct {
	// CleanFences strips markdown code fences the model wraps structured
	// outputs in (json, yaml, csv ...)
	CleanFences bool `yaml:"clean_fences"`

	// TrimWhitespace removes leading and trailing whitespace from outputs
	TrimWhitespace bool `yaml:"trim_whitespace"`

	// MaxLength limits the output length in bytes. Zero means unlimited.
	MaxLength int `yaml:"max_length"`
}
