package coursegen

import (
	stdjson "encoding/json"
	"math"

	"github.com/trezcool/courselogic/core/course"
)

// Merge applies a generated course payload onto the draft being authored.
//
// The payload is either `{"course": {...}, "modules": [...]}` or the flat course object.
// Each field is taken from the payload only when it has the expected JSON type
// (any string for text fields, any finite number for numeric ones), otherwise prev keeps its value.
// Modules are replaced when the payload holds a modules array.
func Merge(prev course.Draft, payload []byte) course.Draft {
	doc, err := decode(payload)
	if err != nil {
		return prev
	}
	root, ok := doc.(map[string]interface{})
	if !ok {
		return prev
	}

	obj := root
	if c, found := root["course"]; found && c != nil {
		obj, _ = c.(map[string]interface{}) // a non-object course has no usable fields
	}

	merged := prev
	merged.Title = safeString(obj["title"], prev.Title)
	merged.Description = safeString(obj["description"], prev.Description)
	merged.Category = safeString(obj["category"], prev.Category)
	merged.Level = safeString(obj["level"], prev.Level)
	merged.DurationHours = safeInt(obj["duration_hours"], prev.DurationHours)
	merged.Price = safeFloat(obj["price"], prev.Price)
	merged.IsFree = safeBool(obj["is_free"], prev.IsFree)

	if mods, ok := root["modules"].([]interface{}); ok {
		merged.Modules = mergeModules(mods)
	} else if mods, ok := obj["modules"].([]interface{}); ok {
		merged.Modules = mergeModules(mods)
	}
	return merged
}

func mergeModules(items []interface{}) []course.ModuleDraft {
	modules := make([]course.ModuleDraft, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		md := course.ModuleDraft{
			Title:       safeString(m["title"], ""),
			Description: safeString(m["description"], ""),
			Lessons:     make([]course.LessonDraft, 0),
		}
		lessons, _ := m["lessons"].([]interface{})
		for _, li := range lessons {
			l, ok := li.(map[string]interface{})
			if !ok {
				continue
			}
			md.Lessons = append(md.Lessons, course.LessonDraft{
				Title:           safeString(l["title"], ""),
				Content:         safeString(l["content"], ""),
				VideoURL:        safeString(l["video_url"], ""),
				DurationMinutes: safeInt(l["duration_minutes"], 0),
			})
		}
		modules = append(modules, md)
	}
	return modules
}

func safeString(v interface{}, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func safeBool(v interface{}, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func safeFloat(v interface{}, def float64) float64 {
	n, ok := v.(stdjson.Number)
	if !ok {
		return def
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return def
	}
	return f
}

func safeInt(v interface{}, def int) int {
	f := safeFloat(v, math.NaN())
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(math.Round(f))
}
