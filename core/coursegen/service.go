package coursegen

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
)

// SystemPrompt instructs the model how to write a course.
const SystemPrompt = `You are a highly skilled AI course content generator, specializing in creating **detailed, simple, and engaging** educational materials. Your task is to create a comprehensive course outline and detailed lesson content based on the user's prompt. You MUST generate a course title, description, category, level, estimated total duration, price, and whether it's free. Respond with a single JSON object that strictly adheres to the provided JSON schema. Use markdown-like formatting for lesson content (e.g., **bold**, *italic*, __underline__, bullet points with '• ', and code blocks with ` + "```lang\ncode\n```" + `).

CRITICAL REQUIREMENTS - MUST FOLLOW EXACTLY:
- Generate a **complete and ready-to-use course**. Do not output placeholders or instructions for the user to fill in content. Every field must be fully populated.
- Aim for a comprehensive course structure: **5 modules**, with **4 lessons in each module**, resulting in a total of **20 lessons**.
- Each lesson should be **45-60 minutes** long to allow for in-depth explanations.
- The course description should be 2-3 sentences.
- The estimated total duration should be **15-25 hours** based on content volume.
- For price, if the course is free, set price to 0 and is_free to true. Otherwise, set a realistic price and is_free to false.
`

type (
	// Generator asks a generative model for a JSON document.
	Generator interface {
		// Generate returns the raw JSON text produced by the model for prompt.
		Generate(ctx context.Context, system, prompt string, schema []byte) ([]byte, error)
	}

	// Result is a generated course. When generation fails, Course is the fallback course,
	// Fallback is set and RawError holds the failure details.
	Result struct {
		Course   course.Draft `json:"course"`
		Fallback bool         `json:"fallback"`
		RawError string       `json:"raw_error,omitempty"`
	}

	Service interface {
		Generate(ctx context.Context, prompt string) (Result, error)
	}

	service struct {
		gen    Generator
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(gen Generator, logger core.Logger) Service {
	return &service{gen: gen, logger: logger}
}

// Generate drafts a course from prompt. Only an empty prompt is an error:
// any generation failure yields the fallback course.
func (svc *service) Generate(ctx context.Context, prompt string) (Result, error) {
	prompt = core.CleanString(prompt)
	if prompt == "" {
		return Result{}, core.NewValidationError(nil, core.FieldError{Field: "prompt", Error: "this field is required"})
	}

	raw, err := svc.gen.Generate(ctx, SystemPrompt, prompt, []byte(expandSchema()))
	if err != nil {
		return svc.fallback(errors.Wrap(err, "AI generation failed after retries")), nil
	}
	g, err := Parse(raw)
	if err != nil {
		return svc.fallback(err), nil
	}
	return Result{Course: g.Draft()}, nil
}

func (svc *service) fallback(err error) Result {
	svc.logger.Warn(fmt.Sprintf("generating course: %v", err), err)
	return Result{
		Course:   FallbackCourse(),
		Fallback: true,
		RawError: err.Error(),
	}
}

// FallbackCourse is the minimal course returned when the model is unavailable,
// so that the authoring workflow can still go on.
func FallbackCourse() course.Draft {
	return course.Draft{
		Title:         "Untitled Course (AI Fallback)",
		Description:   "AI was temporarily unavailable, so this minimal course was generated as a placeholder. Edit freely or try generating again later.",
		Category:      "Other",
		Level:         course.LevelBeginner,
		DurationHours: 1,
		Price:         0,
		IsFree:        true,
		Modules: []course.ModuleDraft{{
			Title:       "Module 1: Getting Started",
			Description: "Kick-off module.",
			Lessons: []course.LessonDraft{{
				Title:           "Lesson 1: Overview",
				DurationMinutes: 30,
				Content:         "Replace this placeholder with real content. When AI becomes available, you can regenerate or refine with the AI assistant.",
			}},
		}},
	}
}
