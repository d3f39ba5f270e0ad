package intent

import "strings"

const parseIntentPrompt = `Analyze the following utterance and identify the intent, entities and any other relevant information.
Then, call the appropriate tool.
If an output format is not specified, provide a textual response.
If a structured output is required, but no format is provided, use YAML as the default format.
If there is no tool to fulfill the intent, call the ` + "`" + FallbackFunctionName + "`" + ` tool with "Sorry, I don't have the capability to {fulfill the intent}.", still respecting the desired output format (if specified).
Don't improvise or make up a response.`

const imagePrompt = `Write a prompt for an image generation model that depicts the result of the tool call and fulfills the user's intent.
Reply with the prompt only.`

// formatResponsePrompt is the system instruction of the format pass.
func formatResponsePrompt(format ResponseFormat, structuredSchema string) string {
	var b strings.Builder
	b.WriteString("Fulfill the user's intent by providing a ")
	b.WriteString(string(format))
	b.WriteString(" response.")
	if structuredSchema != "" {
		b.WriteString("\nUse the following schema: ")
		b.WriteString(structuredSchema)
	}
	return b.String()
}
