package intent

import "strings"

// ResponseFormat is a category-prefixed output shape such as
// "structured:yaml" or "audio:mp3".
type ResponseFormat string

const (
	FormatTextPlain    ResponseFormat = "text:plain"
	FormatTextBase64   ResponseFormat = "text:base64"
	FormatTextMarkdown ResponseFormat = "text:markdown"
	FormatCSV          ResponseFormat = "structured:csv"
	FormatJSON         ResponseFormat = "structured:json"
	FormatYAML         ResponseFormat = "structured:yaml"
	FormatXML          ResponseFormat = "structured:xml"
	FormatHTML         ResponseFormat = "structured:html"
	FormatMermaid      ResponseFormat = "structured:mermaid"
	FormatMP3          ResponseFormat = "audio:mp3"

	// FormatPNG is only offered to the model when the dispatcher has an
	// image generator.
	FormatPNG ResponseFormat = "image:png"
)

// Format categories.
const (
	CategoryText       = "text"
	CategoryStructured = "structured"
	CategoryAudio      = "audio"
	CategoryImage      = "image"
)

// DefaultFormats is the enumeration offered to the model for every tool.
var DefaultFormats = []ResponseFormat{
	FormatTextPlain,
	FormatTextBase64,
	FormatTextMarkdown,
	FormatCSV,
	FormatJSON,
	FormatYAML,
	FormatXML,
	FormatHTML,
	FormatMermaid,
	FormatMP3,
}

// Category returns the media category before the colon.
func (f ResponseFormat) Category() string {
	category, _, _ := strings.Cut(string(f), ":")
	return category
}

// Subtype returns the sub-format after the colon, e.g. "yaml".
func (f ResponseFormat) Subtype() string {
	_, subtype, _ := strings.Cut(string(f), ":")
	return subtype
}

// IsStructured reports whether f is a structured data format.
func (f ResponseFormat) IsStructured() bool {
	return f.Category() == CategoryStructured
}

// IsBinary reports whether the output of f is base64 encoded binary data.
func (f ResponseFormat) IsBinary() bool {
	c := f.Category()
	return c == CategoryAudio || c == CategoryImage
}

// Valid reports whether f is one of the known formats.
func (f ResponseFormat) Valid() bool {
	if f == FormatPNG {
		return true
	}
	for _, known := range DefaultFormats {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFormat maps s to a known format. Empty or unknown values yield
// FormatTextPlain and ok false.
func ParseFormat(s string) (f ResponseFormat, ok bool) {
	f = ResponseFormat(strings.ToLower(strings.TrimSpace(s)))
	if f.Valid() {
		return f, true
	}
	return FormatTextPlain, false
}
