package mcp

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// schemaReflector is shared by every RegisterTool call so all tool schemas
// are reflected with the same settings, matching the teacher's doc comment
// sketch of deriving a tool's inputSchema from a plain Go argument struct's
// `jsonschema:"..."` tags. RegisterPrompt does not use it.
var schemaReflector = &jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
	ExpandedStruct:             true,
}

// schemaFor reflects v's type into a JSON Schema object, suitable for
// Tool.InputSchema.
func schemaFor(v interface{}) (map[string]interface{}, error) {
	schema := schemaReflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "mcp: marshal reflected schema")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(err, "mcp: decode reflected schema")
	}
	delete(obj, "$schema")
	return obj, nil
}
