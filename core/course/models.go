package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Media types
const (
	MediaImage    = "image"
	MediaVideo    = "video"
	MediaDocument = "document"
)

var (
	Levels     = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	Categories = []string{"Web Development", "Data Science", "Design", "Business", "Marketing", "Programming", "Other"}
	MediaTypes = []string{MediaImage, MediaVideo, MediaDocument}
)

type (
	Course struct {
		ID            string    `json:"id"`
		Title         string    `json:"title"`
		Description   string    `json:"description"`
		ThumbnailURL  string    `json:"thumbnail_url"`
		Price         float64   `json:"price"`
		IsFree        bool      `json:"is_free"`
		IsPublished   bool      `json:"is_published"`
		InstructorID  string    `json:"instructor_id,omitempty"`
		Category      string    `json:"category"`
		DurationHours int       `json:"duration_hours"`
		Level         string    `json:"level"`
		CreatedAt     time.Time `json:"created_at"` // UTC
		UpdatedAt     time.Time `json:"updated_at"` // UTC
	}

	Module struct {
		ID          string   `json:"id"`
		CourseID    string   `json:"course_id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		OrderIndex  int      `json:"order_index"`
		Lessons     []Lesson `json:"lessons"`
	}

	Lesson struct {
		ID              string           `json:"id"`
		CourseID        string           `json:"course_id"`
		ModuleID        string           `json:"module_id"`
		Title           string           `json:"title"`
		Content         *content.Content `json:"content"`
		VideoURL        string           `json:"video_url"`
		OrderIndex      int              `json:"order_index"`
		DurationMinutes int              `json:"duration_minutes"`
	}

	Media struct {
		ID        string    `json:"id"`
		CourseID  string    `json:"course_id"`
		LessonID  string    `json:"lesson_id,omitempty"`
		MediaType string    `json:"media_type"`
		MediaURL  string    `json:"media_url"`
		MediaName string    `json:"media_name"`
		FileSize  int64     `json:"file_size"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Outline is a course with its modules, each holding its ordered lessons.
	Outline struct {
		Course  Course   `json:"course"`
		Modules []Module `json:"modules"`
	}

	Stats struct {
		TotalCourses     int `json:"total_courses"`
		PublishedCourses int `json:"published_courses"`
		TotalEnrollments int `json:"total_enrollments"`
	}
)

// Lessons returns the lessons of all modules, in reading order.
func (o Outline) Lessons() []Lesson {
	var lessons []Lesson
	for _, m := range o.Modules {
		lessons = append(lessons, m.Lessons...)
	}
	return lessons
}

// Draft is a course as written in the authoring workflow.
type Draft struct {
	Title         string        `json:"title" validate:"required,notblank,max=200"`
	Description   string        `json:"description" validate:"max=5000"`
	ThumbnailURL  string        `json:"thumbnail_url" validate:"omitempty,url"`
	Price         float64       `json:"price" validate:"gte=0"`
	IsFree        bool          `json:"is_free"`
	IsPublished   bool          `json:"is_published"`
	Category      string        `json:"category" validate:"omitempty,category"`
	Level         string        `json:"level" validate:"omitempty,level"`
	DurationHours int           `json:"duration_hours" validate:"gte=0"`
	Modules       []ModuleDraft `json:"modules" validate:"dive"`
}

type ModuleDraft struct {
	Title       string        `json:"title" validate:"max=100"`
	Description string        `json:"description"`
	Lessons     []LessonDraft `json:"lessons" validate:"dive"`
}

type LessonDraft struct {
	Title           string `json:"title" validate:"max=100"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

func (d *Draft) Validate(validate *validator.Validate) error {
	d.Title = core.CleanString(d.Title)
	d.Description = core.CleanString(d.Description)
	d.ThumbnailURL = core.CleanString(d.ThumbnailURL)
	d.Category = core.CleanString(d.Category)
	d.Level = core.CleanString(d.Level, true /* lower */)
	if d.IsFree {
		d.Price = 0
	}
	return validate.Struct(d)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left untouched.
type UpdateCourse struct {
	Title         *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL  *string  `json:"thumbnail_url" validate:"omitempty,url"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
	IsFree        *bool    `json:"is_free"`
	Category      *string  `json:"category" validate:"omitempty,category"`
	Level         *string  `json:"level" validate:"omitempty,level"`
	DurationHours *int     `json:"duration_hours" validate:"omitempty,gte=0"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower ...bool) {
		if s != nil {
			*s = core.CleanString(*s, lower...)
		}
	}
	clean(uc.Title)
	clean(uc.Description)
	clean(uc.ThumbnailURL)
	clean(uc.Category)
	clean(uc.Level, true /* lower */)
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(c *Course) {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.ThumbnailURL != nil {
		c.ThumbnailURL = *uc.ThumbnailURL
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.IsFree != nil {
		c.IsFree = *uc.IsFree
	}
	if uc.Category != nil {
		c.Category = *uc.Category
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.DurationHours != nil {
		c.DurationHours = *uc.DurationHours
	}
	if c.IsFree {
		c.Price = 0
	}
}

type QueryFilter struct {
	Search    string `query:"search"`
	Category  string `query:"category"`
	Level     string `query:"level"`
	Published *bool  `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
}

// NewMedia describes an uploaded course media file.
type NewMedia struct {
	CourseID    string `form:"-" validate:"required"`
	LessonID    string `form:"lesson_id"`
	MediaType   string `form:"media_type" validate:"omitempty,oneof=image video document"`
	Filename    string `form:"-" validate:"required"`
	ContentType string `form:"-"`
	Size        int64  `form:"-"`
}
