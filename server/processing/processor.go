// Package processing cleans the outputs of the format pass before they are
// returned to clients.
package processing

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/teilomillet/gollm"

	"github.com/teilomillet/aci/config"
	"github.com/teilomillet/aci/intent"
)

// Verify at compile time that Processor implements intent.PostProcessor
var _ intent.PostProcessor = (*Processor)(nil)

// fencePattern matches an output wrapped in a single markdown code fence,
// with or without a language tag.
var fencePattern = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_+-]*[ \\t]*\\n(.*?)\\n?```\\s*$")

// Processor applies the configured response formatting to format pass
// outputs.
//
// Key features:
// - Strips the markdown fences models wrap structured outputs in
// - Extracts the JSON document from chatty structured:json replies
// - Trims whitespace and enforces a maximum length
//
// Every option is off in the default configuration, so the model's second
// reply is returned verbatim unless the operator opts in. The configuration
// can be swapped at runtime with SetConfig, which is how hot reloads reach it. Binary outputs are never handed to the processor.
type Processor struct {
	config atomic.Pointer[config.ProcessingConfig]
}

// NewProcessor creates a processor using cfg. A nil cfg uses the defaults.
func NewProcessor(cfg *config.ProcessingConfig) *Processor {
	p := &Processor{}
	p.SetConfig(cfg)
	return p
}

// SetConfig replaces the active configuration.
func (p *Processor) SetConfig(cfg *config.ProcessingConfig) {
	if cfg == nil {
		cfg = &config.DefaultConfig().Processing
	}
	c := *cfg
	p.config.Store(&c)
}

// Process implements intent.PostProcessor.
func (p *Processor) Process(format intent.ResponseFormat, output string) string {
	cfg := p.config.Load().ResponseFormatting

	if cfg.CleanFences && format.IsStructured() {
		output = cleanFences(format, output)
	}
	if cfg.TrimWhitespace {
		output = strings.TrimSpace(output)
	}
	if cfg.MaxLength > 0 && len(output) > cfg.MaxLength {
		output = truncate(output, cfg.MaxLength)
	}
	return output
}

func cleanFences(format intent.ResponseFormat, output string) string {
	if m := fencePattern.FindStringSubmatch(output); m != nil {
		output = m[1]
	}
	// JSON replies sometimes carry prose around the document.
	if format == intent.FormatJSON && !json.Valid([]byte(strings.TrimSpace(output))) {
		output = gollm.CleanResponse(output)
	}
	return output
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
