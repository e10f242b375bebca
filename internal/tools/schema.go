package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// reflectParameters builds the JSON-Schema object for an argument struct.
// Fields without omitempty are required; unknown properties are rejected.
func reflectParameters(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)

	params := map[string]any{
		"type":                 "object",
		"properties":           toPlain(schema.Properties),
		"additionalProperties": false,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	return params
}

// toPlain converts ordered schema maps into plain JSON values.
func toPlain(v any) map[string]any {
	out := map[string]any{}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// decodeArgs strictly decodes model-supplied arguments into dst.
func decodeArgs(tool string, input map[string]any, dst any) error {
	if input == nil {
		input = map[string]any{}
	}
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %v", tool, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid arguments for %s: %v", tool, err)
	}
	return nil
}
