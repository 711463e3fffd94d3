package coursegen

import (
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/trezcool/courselogic/core/course"
)

// courseSchema is the shape a generated course must have.
// The category & level enums are filled from the course package.
const courseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "description", "category", "level", "duration_hours", "price", "is_free", "modules"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "description": {"type": "string", "minLength": 1, "maxLength": 500},
    "category": {"enum": [%CATEGORIES%]},
    "level": {"enum": [%LEVELS%]},
    "duration_hours": {"type": "integer", "minimum": 1, "maximum": 100},
    "price": {"type": "number", "minimum": 0, "maximum": 1000},
    "is_free": {"type": "boolean"},
    "modules": {
      "type": "array",
      "minItems": 4,
      "maxItems": 5,
      "items": {
        "type": "object",
        "required": ["title", "description", "lessons"],
        "properties": {
          "title": {"type": "string", "minLength": 1, "maxLength": 100},
          "description": {"type": "string", "minLength": 1, "maxLength": 500},
          "lessons": {
            "type": "array",
            "minItems": 3,
            "maxItems": 4,
            "items": {
              "type": "object",
              "required": ["title", "content", "duration_minutes"],
              "properties": {
                "title": {"type": "string", "minLength": 1, "maxLength": 100},
                "content": {"type": "string", "minLength": 1},
                "duration_minutes": {"type": "integer", "minimum": 1, "maximum": 300}
              }
            }
          }
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("course.json", expandSchema())

func expandSchema() string {
	quote := func(list []string) string {
		quoted := make([]string, 0, len(list))
		for _, s := range list {
			quoted = append(quoted, `"`+s+`"`)
		}
		return strings.Join(quoted, ", ")
	}
	return strings.NewReplacer(
		"%CATEGORIES%", quote(course.Categories),
		"%LEVELS%", quote(course.Levels),
	).Replace(courseSchema)
}

// Issue is a single schema violation, located by a dotted path into the payload.
type Issue struct {
	Path    string
	Message string
}

func collectIssues(verr *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			path := strings.ReplaceAll(strings.TrimPrefix(node.InstanceLocation, "/"), "/", ".")
			issues = append(issues, Issue{Path: path, Message: strings.TrimSpace(node.Message)})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return issues
}
