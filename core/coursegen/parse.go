package coursegen

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
	"github.com/pkg/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/trezcool/courselogic/core/course"
)

// numbers are kept as json.Number so that the schema can tell integers from floats
var json = jsoniter.Config{UseNumber: true, EscapeHTML: false}.Froze()

// SchemaError reports a generated course that does not match the course schema.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return "AI response did not match schema. Validation errors: " + strings.Join(parts, ", ")
}

// Generated is a course as produced by the model.
type Generated struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	Level         string            `json:"level"`
	DurationHours int               `json:"duration_hours"`
	Price         float64           `json:"price"`
	IsFree        bool              `json:"is_free"`
	Modules       []GeneratedModule `json:"modules"`
}

type GeneratedModule struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Lessons     []GeneratedLesson `json:"lessons"`
}

type GeneratedLesson struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Draft converts the generated course into an unpublished course draft.
func (g Generated) Draft() course.Draft {
	d := course.Draft{
		Title:         g.Title,
		Description:   g.Description,
		Category:      g.Category,
		Level:         g.Level,
		DurationHours: g.DurationHours,
		Price:         g.Price,
		IsFree:        g.IsFree,
		Modules:       make([]course.ModuleDraft, 0, len(g.Modules)),
	}
	if d.IsFree {
		d.Price = 0
	}
	for _, m := range g.Modules {
		md := course.ModuleDraft{
			Title:       m.Title,
			Description: m.Description,
			Lessons:     make([]course.LessonDraft, 0, len(m.Lessons)),
		}
		for _, l := range m.Lessons {
			md.Lessons = append(md.Lessons, course.LessonDraft{
				Title:           l.Title,
				Content:         l.Content,
				DurationMinutes: l.DurationMinutes,
			})
		}
		d.Modules = append(d.Modules, md)
	}
	return d
}

// Parse decodes a raw model response into a Generated course.
// Malformed JSON is repaired first. The result must match the course schema.
func Parse(raw []byte) (Generated, error) {
	doc, err := decode(raw)
	if err != nil {
		return Generated{}, err
	}

	if err = schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Generated{}, &SchemaError{Issues: collectIssues(verr)}
		}
		return Generated{}, errors.Wrap(err, "validating generated course")
	}

	// the document matches the schema, so this cannot fail on types
	var g Generated
	b, err := json.Marshal(doc)
	if err != nil {
		return Generated{}, errors.Wrap(err, "encoding generated course")
	}
	if err = json.Unmarshal(b, &g); err != nil {
		return Generated{}, errors.Wrap(err, "decoding generated course")
	}
	return g, nil
}

// decode unmarshals raw into a generic document, repairing it when it is not valid JSON.
func decode(raw []byte) (interface{}, error) {
	text := stripCodeFence(string(raw))
	if text == "" {
		return nil, errors.New("empty AI response")
	}

	var doc interface{}
	origErr := json.UnmarshalFromString(text, &doc)
	if origErr == nil {
		return doc, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, errors.Wrap(origErr, "decoding AI response")
	}
	if err = json.UnmarshalFromString(repaired, &doc); err != nil {
		return nil, errors.Wrap(origErr, "decoding AI response")
	}
	return doc, nil
}

// stripCodeFence removes a markdown code fence wrapping the whole text.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:] // language tag
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
