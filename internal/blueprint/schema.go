package blueprint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation indicates a blueprint file failed structural validation.
var ErrSchemaViolation = errors.New("blueprint schema violation")

// blueprintSchema is the structural contract for blueprint files. It is
// deliberately permissive about unknown keys: author files carry extra
// metadata that the orchestrator ignores.
const blueprintSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "models": {
      "type": "array",
      "items": {
        "oneOf": [
          {"type": "string"},
          {
            "type": "object",
            "properties": {"id": {"type": "string"}},
            "required": ["id"]
          }
        ]
      }
    },
    "prompts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "prompt": {"type": "string"},
          "messages": {"type": "array"},
          "points": {"type": "array"}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(blueprintSchema)

// validateSchema checks a decoded blueprint document against the structural
// schema before field extraction, so type mismatches surface as a clear
// error instead of silently decoding to zero values.
func validateSchema(doc any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate blueprint: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(details, "; "))
}
