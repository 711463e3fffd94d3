package coursegen

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
)

func validCourse() Generated {
	g := Generated{
		Title:         "Python Basics",
		Description:   "Learn Python from scratch.",
		Category:      "Programming",
		Level:         "beginner",
		DurationHours: 20,
		Price:         49.99,
		IsFree:        false,
	}
	for m := 1; m <= 4; m++ {
		mod := GeneratedModule{Title: fmt.Sprintf("Module %d", m), Description: "About it."}
		for l := 1; l <= 3; l++ {
			mod.Lessons = append(mod.Lessons, GeneratedLesson{
				Title:           fmt.Sprintf("Lesson %d.%d", m, l),
				Content:         "**Variables** hold values.",
				DurationMinutes: 45,
			})
		}
		g.Modules = append(g.Modules, mod)
	}
	return g
}

func marshal(t *testing.T, v interface{}) []byte {
	b, err := stdjson.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestParse(t *testing.T) {
	valid := marshal(t, validCourse())

	tooFewModules := validCourse()
	tooFewModules.Modules = tooFewModules.Modules[:3]

	badLevel := validCourse()
	badLevel.Level = "expert"

	longLesson := validCourse()
	longLesson.Modules[1].Lessons[2].DurationMinutes = 301

	tests := []struct {
		name       string
		raw        []byte
		wantErrStr string // prefix
		wantIssue  string // a path reported by the schema error
	}{
		{name: "valid", raw: valid},
		{name: "code fence", raw: []byte("```json\n" + string(valid) + "\n```")},
		{name: "repairable: missing closing brace", raw: valid[:len(valid)-1]},
		{name: "repairable: trailing comma", raw: []byte(strings.TrimSuffix(string(valid), "}") + ",}")},
		{name: "empty", raw: []byte("  "), wantErrStr: "empty AI response"},
		{name: "too few modules", raw: marshal(t, tooFewModules), wantErrStr: "AI response did not match schema. Validation errors: ", wantIssue: "modules"},
		{name: "unknown level", raw: marshal(t, badLevel), wantErrStr: "AI response did not match schema. Validation errors: ", wantIssue: "level"},
		{name: "lesson too long", raw: marshal(t, longLesson), wantErrStr: "AI response did not match schema. Validation errors: ", wantIssue: "modules.1.lessons.2.duration_minutes"},
		{name: "fractional duration", raw: []byte(strings.Replace(string(valid), `"duration_hours":20`, `"duration_hours":2.5`, 1)), wantErrStr: "AI response did not match schema. Validation errors: ", wantIssue: "duration_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Parse(tt.raw)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.True(t, strings.HasPrefix(err.Error(), tt.wantErrStr), err.Error())
				if tt.wantIssue != "" {
					serr, ok := err.(*SchemaError)
					require.True(t, ok, "want a schema error, got %T", err)
					paths := make([]string, 0, len(serr.Issues))
					for _, issue := range serr.Issues {
						paths = append(paths, issue.Path)
					}
					assert.Contains(t, paths, tt.wantIssue)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validCourse(), g)
		})
	}
}

func TestGenerated_Draft(t *testing.T) {
	g := validCourse()
	g.IsFree = true
	d := g.Draft()

	assert.Equal(t, "Python Basics", d.Title)
	assert.Zero(t, d.Price, "free courses cost nothing")
	require.Len(t, d.Modules, 4)
	require.Len(t, d.Modules[3].Lessons, 3)
	assert.Equal(t, "Lesson 4.3", d.Modules[3].Lessons[2].Title)
	assert.Equal(t, 45, d.Modules[3].Lessons[2].DurationMinutes)
}

type generatorFunc func(ctx context.Context, system, prompt string, schema []byte) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, system, prompt string, schema []byte) ([]byte, error) {
	return f(ctx, system, prompt, schema)
}

type logRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (l *logRecorder) Debug(string, ...interface{}) {}
func (l *logRecorder) Info(string, ...interface{})  {}
func (l *logRecorder) Error(string, ...interface{}) {}
func (l *logRecorder) Fatal(string, ...interface{}) {}
func (l *logRecorder) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestService_Generate(t *testing.T) {
	valid := marshal(t, validCourse())

	tests := []struct {
		name         string
		prompt       string
		gen          generatorFunc
		wantErr      bool
		wantFallback bool
		wantRawErr   string // prefix
	}{
		{
			name:    "blank prompt",
			prompt:  "  ",
			wantErr: true,
		},
		{
			name:   "valid",
			prompt: "python for beginners",
			gen: func(_ context.Context, system, prompt string, schema []byte) ([]byte, error) {
				if system != SystemPrompt || prompt != "python for beginners" || len(schema) == 0 {
					return nil, errors.New("unexpected request")
				}
				return valid, nil
			},
		},
		{
			name:   "generator failure",
			prompt: "python",
			gen: func(context.Context, string, string, []byte) ([]byte, error) {
				return nil, errors.New("503 unavailable")
			},
			wantFallback: true,
			wantRawErr:   "AI generation failed after retries: 503 unavailable",
		},
		{
			name:   "schema mismatch",
			prompt: "python",
			gen: func(context.Context, string, string, []byte) ([]byte, error) {
				return []byte(`{"title": "Python"}`), nil
			},
			wantFallback: true,
			wantRawErr:   "AI response did not match schema. Validation errors: ",
		},
		{
			name:   "garbage",
			prompt: "python",
			gen: func(context.Context, string, string, []byte) ([]byte, error) {
				return []byte(`I cannot do that`), nil
			},
			wantFallback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(logRecorder)
			svc := NewService(tt.gen, logger)

			res, err := svc.Generate(context.Background(), tt.prompt)
			if tt.wantErr {
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok, "want a validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFallback, res.Fallback)

			if !tt.wantFallback {
				assert.Equal(t, validCourse().Draft(), res.Course)
				assert.Empty(t, res.RawError)
				assert.Empty(t, logger.warns)
				return
			}
			assert.Equal(t, FallbackCourse(), res.Course)
			assert.NotEmpty(t, res.RawError)
			assert.True(t, strings.HasPrefix(res.RawError, tt.wantRawErr), res.RawError)
			assert.Len(t, logger.warns, 1)
		})
	}
}

func TestFallbackCourse(t *testing.T) {
	fb := FallbackCourse()
	assert.Equal(t, "Untitled Course (AI Fallback)", fb.Title)
	assert.True(t, fb.IsFree)
	require.Len(t, fb.Modules, 1)
	require.Len(t, fb.Modules[0].Lessons, 1)
	assert.Equal(t, "Lesson 1: Overview", fb.Modules[0].Lessons[0].Title)
	assert.Equal(t, 30, fb.Modules[0].Lessons[0].DurationMinutes)

	// the fallback is returned for a reason; it does not have to satisfy the generation schema
	_, err := Parse(marshal(t, fb))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	prev := course.Draft{
		Title:         "Mine",
		Description:   "My description",
		Category:      "Design",
		Level:         "advanced",
		DurationHours: 3,
		Price:         10,
		Modules:       []course.ModuleDraft{{Title: "Kept"}},
	}

	tests := []struct {
		name    string
		payload string
		want    func(d course.Draft) course.Draft
	}{
		{
			name:    "not json",
			payload: `nope`,
			want:    func(d course.Draft) course.Draft { return d },
		},
		{
			name:    "not an object",
			payload: `[1, 2]`,
			want:    func(d course.Draft) course.Draft { return d },
		},
		{
			name:    "flat shape",
			payload: `{"title": "AI", "description": "Generated", "duration_hours": 12, "modules": [{"title": "M1", "lessons": [{"title": "L1", "content": "x", "duration_minutes": 30}]}]}`,
			want: func(d course.Draft) course.Draft {
				d.Title, d.Description, d.DurationHours = "AI", "Generated", 12
				d.Modules = []course.ModuleDraft{{Title: "M1", Lessons: []course.LessonDraft{{Title: "L1", Content: "x", DurationMinutes: 30}}}}
				return d
			},
		},
		{
			name:    "nested shape",
			payload: `{"course": {"title": "AI", "level": "beginner"}, "modules": [{"title": "M1"}]}`,
			want: func(d course.Draft) course.Draft {
				d.Title, d.Level = "AI", "beginner"
				d.Modules = []course.ModuleDraft{{Title: "M1", Lessons: []course.LessonDraft{}}}
				return d
			},
		},
		{
			name:    "nested modules",
			payload: `{"course": {"modules": [{"title": "M1"}]}}`,
			want: func(d course.Draft) course.Draft {
				d.Modules = []course.ModuleDraft{{Title: "M1", Lessons: []course.LessonDraft{}}}
				return d
			},
		},
		{
			name:    "finite numbers are accepted",
			payload: `{"duration_hours": 7.6, "price": 0}`,
			want: func(d course.Draft) course.Draft {
				d.DurationHours, d.Price = 8, 0
				return d
			},
		},
		{
			name:    "wrong types fall back per field",
			payload: `{"title": 42, "description": null, "category": ["x"], "level": "beginner", "duration_hours": "12", "price": true, "is_free": "yes", "modules": {"title": "M"}}`,
			want: func(d course.Draft) course.Draft {
				d.Level = "beginner"
				return d
			},
		},
		{
			name:    "out of range number",
			payload: `{"duration_hours": 1e400}`,
			want:    func(d course.Draft) course.Draft { return d },
		},
		{
			name:    "non-object course",
			payload: `{"course": "AI", "title": "ignored"}`,
			want:    func(d course.Draft) course.Draft { return d },
		},
		{
			name:    "fallback result",
			payload: string(mustJSON(Result{Course: FallbackCourse(), Fallback: true, RawError: "boom"})),
			want: func(d course.Draft) course.Draft {
				return FallbackCourse()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want(prev), Merge(prev, []byte(tt.payload)))
		})
	}
}

func mustJSON(v interface{}) []byte {
	b, err := stdjson.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
