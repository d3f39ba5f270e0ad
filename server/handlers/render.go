package handlers

import (
	"encoding/base64"

	"github.com/teilomillet/aci/intent"
)

const (
	textPlain = "text/plain; charset=utf-8"
)

// structuredTypes maps structured subtypes whose media type is not
// application/<subtype>.
var structuredTypes = map[string]string{
	"html":    "text/html; charset=utf-8",
	"csv":     "text/csv; charset=utf-8",
	"mermaid": "text/vnd.mermaid; charset=utf-8",
}

// binaryTypes maps binary formats to their media types.
var binaryTypes = map[intent.ResponseFormat]string{
	intent.FormatMP3: "audio/mpeg",
	intent.FormatPNG: "image/png",
}

// Render maps a response to its content type and body. Binary outputs are
// decoded from base64. An audio or image format without binary output,
// such as a fallback message or text from a backend that cannot render
// it, is sent as plain text.
func Render(resp *intent.Response) (contentType string, body []byte) {
	format := resp.Format

	if mediaType, ok := binaryTypes[format]; ok {
		if !resp.Binary {
			return textPlain, []byte(resp.Output)
		}
		data, err := base64.StdEncoding.DecodeString(resp.Output)
		if err != nil {
			return textPlain, []byte(resp.Output)
		}
		return mediaType, data
	}

	switch format.Category() {
	case intent.CategoryStructured:
		subtype := format.Subtype()
		if mediaType, ok := structuredTypes[subtype]; ok {
			return mediaType, []byte(resp.Output)
		}
		return "application/" + subtype + "; charset=utf-8", []byte(resp.Output)
	case intent.CategoryText:
		if format == intent.FormatTextMarkdown {
			return "text/markdown; charset=utf-8", []byte(resp.Output)
		}
	}
	return textPlain, []byte(resp.Output)
}
