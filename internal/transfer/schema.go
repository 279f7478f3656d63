// Package transfer is the import/export boundary: schema-validated
// decoding of user-supplied files and serialization for download.
package transfer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrTemplateMismatch is returned when an imported progress file targets
// a different template than the one currently loaded.
var ErrTemplateMismatch = errors.New("progress file targets a different template")

const templateSchemaJSON = `{
  "type": "object",
  "required": ["id", "title", "groups", "totalUnitsRequired"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "university": {"type": "string"},
    "totalUnitsRequired": {"type": "number"},
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "courses"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "requiredUnits": {"type": "number", "minimum": 0},
          "overflowTargetGroupId": {"type": "string"},
          "courses": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "title", "units"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "title": {"type": "string"},
                "units": {"type": "number", "minimum": 1},
                "prerequisites": {"type": "array", "items": {"type": "string"}},
                "corequisites": {"type": "array", "items": {"type": "string"}},
                "category": {"type": "string"},
                "semester": {"type": "number"}
              }
            }
          }
        }
      }
    }
  }
}`

const progressSchemaJSON = `{
  "type": "object",
  "required": ["templateId", "passedCourses"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1},
    "passedCourses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["courseId"],
        "properties": {
          "courseId": {"type": "string", "minLength": 1},
          "term": {"type": "number"},
          "grade": {"type": "number"}
        }
      }
    }
  }
}`

var (
	templateSchema = mustSchema(templateSchemaJSON)
	progressSchema = mustSchema(progressSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return s
}

// validate runs a document through a schema and folds violations into a
// single user-presentable error.
func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid file format: %s", strings.Join(msgs, "; "))
}
