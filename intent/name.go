package intent

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	invalidChars  = regexp.MustCompile(`[^a-z0-9_]`)
)

// FunctionName derives the tool name for an intent label: lower-cased,
// whitespace runs replaced by a single underscore, then everything outside
// [a-z0-9_] removed.
//
//	FunctionName("Convert name to base64") == "convert_name_to_base64"
//	FunctionName("Check status (v2)!")     == "check_status_v2"
func FunctionName(label string) string {
	name := strings.ToLower(label)
	name = whitespaceRun.ReplaceAllString(name, "_")
	return invalidChars.ReplaceAllString(name, "")
}
