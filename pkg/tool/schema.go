package tool

import (
	"github.com/invopop/jsonschema"
)

// GenerateSchema derives a JSON Schema map for an argument struct type
// using its json/jsonschema struct tags, matching the schema shape
// providers expect in function-calling tool definitions.
func GenerateSchema[Args any]() map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	var zero Args
	schema := reflector.Reflect(zero)

	out := map[string]any{
		"type": "object",
	}
	if schema.Properties != nil {
		props := make(map[string]any)
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			props[pair.Key] = propertyToMap(pair.Value)
		}
		out["properties"] = props
	}
	if len(schema.Required) > 0 {
		required := make([]any, len(schema.Required))
		for i, r := range schema.Required {
			required[i] = r
		}
		out["required"] = required
	}
	return out
}

func propertyToMap(s *jsonschema.Schema) map[string]any {
	m := map[string]any{}
	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	return m
}
