package template

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "node": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "content": {
          "anyOf": [
            {"type": "array", "items": {"$ref": "#/definitions/node"}},
            {"not": {"type": "array"}}
          ]
        }
      }
    }
  },
  "type": "array",
  "items": {"$ref": "#/definitions/node"}
}`

var compiledSchema = mustCompile(documentSchema)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("template: invalid document schema: %v", err))
	}
	return s
}

func validateDocument(data []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ParseError{Reason: "malformed JSON", Err: err}
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ParseError{Reason: "schema violation: " + strings.Join(msgs, "; ")}
}
