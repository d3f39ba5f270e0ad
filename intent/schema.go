package intent

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Schema describes the entities an intent extracts from an utterance. It
// must be an object schema; an empty Schema means "no entities".
type Schema = jsonschema.Definition

// Metadata field names merged into every tool's parameters.
const (
	FieldResponseFormat   = "response_format"
	FieldStructuredSchema = "structured_schema"
	FieldMessage          = "message"
)

var metadataFields = []string{FieldResponseFormat, FieldStructuredSchema, FieldMessage}

// Metadata holds the output-shape fields the model fills in next to the
// entities of the chosen intent.
type Metadata struct {
	ResponseFormat   ResponseFormat
	StructuredSchema string
	Message          string
}

// metadataSchema is the fixed field set describing the desired output.
// messageRequired is set for the fallback intent, the only one that uses it.
func metadataSchema(formats []ResponseFormat, messageRequired bool) Schema {
	enum := make([]string, len(formats))
	for i, f := range formats {
		enum[i] = string(f)
	}

	required := []string{FieldResponseFormat}
	if messageRequired {
		required = append(required, FieldMessage)
	}

	return Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			FieldResponseFormat: {
				Type: jsonschema.String,
				Enum: enum,
			},
			FieldStructuredSchema: {
				Type:        jsonschema.String,
				Description: "The schema for the structured output. Only used if response_format is structured.",
			},
			FieldMessage: {
				Type: jsonschema.String,
			},
		},
		Required: required,
	}
}

// checkEntitySchema rejects schemas that cannot be composed with the
// metadata fields.
func checkEntitySchema(entity Schema) error {
	if entity.Type != "" && entity.Type != jsonschema.Object {
		return fmt.Errorf("%w: entity schema must be an object, got %q", ErrSchemaConflict, entity.Type)
	}
	for _, field := range metadataFields {
		if _, ok := entity.Properties[field]; ok {
			return fmt.Errorf("%w: entity schema declares reserved field %q", ErrSchemaConflict, field)
		}
	}
	return nil
}

// MergeMetadata composes an entity schema with the metadata field set into
// the parameter schema exposed to the model. The inputs are not modified.
func MergeMetadata(entity Schema, formats []ResponseFormat) (Schema, error) {
	if err := checkEntitySchema(entity); err != nil {
		return Schema{}, err
	}

	meta := metadataSchema(formats, false)
	merged := Schema{
		Type:                 jsonschema.Object,
		Description:          entity.Description,
		Properties:           make(map[string]jsonschema.Definition, len(entity.Properties)+len(meta.Properties)),
		AdditionalProperties: entity.AdditionalProperties,
	}
	for name, def := range entity.Properties {
		merged.Properties[name] = def
	}
	for name, def := range meta.Properties {
		merged.Properties[name] = def
	}

	merged.Required = append(slices.Clone(entity.Required), meta.Required...)
	return merged, nil
}

// splitArguments decodes raw tool arguments and separates the metadata
// fields from the entity fields.
func splitArguments(raw string) (Metadata, map[string]any, error) {
	args := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return Metadata{}, nil, &ArgumentsError{Arguments: raw, Err: err}
		}
		if args == nil {
			// JSON null
			args = map[string]any{}
		}
	}

	var meta Metadata
	if v, ok := args[FieldResponseFormat]; ok {
		s, _ := v.(string)
		meta.ResponseFormat = ResponseFormat(s)
	}
	meta.StructuredSchema = stringify(args[FieldStructuredSchema])
	meta.Message = stringify(args[FieldMessage])

	for _, field := range metadataFields {
		delete(args, field)
	}
	return meta, args, nil
}

// stringify accepts strings as-is and re-encodes anything else the model
// put in a string field, such as an inline schema object.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
