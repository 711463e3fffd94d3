package enrollment

import (
	"math"
	"time"

	"github.com/trezcool/courselogic/core/course"
)

type (
	Enrollment struct {
		ID          string     `json:"id"`
		UserID      string     `json:"user_id"`
		CourseID    string     `json:"course_id"`
		EnrolledAt  time.Time  `json:"enrolled_at"` // UTC
		CompletedAt *time.Time `json:"completed_at"`
		Progress    float64    `json:"progress"` // percent
	}

	LessonProgress struct {
		ID          string     `json:"id"`
		UserID      string     `json:"user_id"`
		LessonID    string     `json:"lesson_id"`
		Completed   bool       `json:"completed"`
		CompletedAt *time.Time `json:"completed_at"`
	}

	// CourseSummary is the part of a course shown on the dashboard.
	CourseSummary struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		Description   string `json:"description"`
		ThumbnailURL  string `json:"thumbnail_url"`
		Category      string `json:"category"`
		DurationHours int    `json:"duration_hours"`
	}

	DashboardEntry struct {
		Enrollment
		Course CourseSummary `json:"course"`
	}

	DashboardStats struct {
		TotalCourses     int `json:"total_courses"`
		CompletedCourses int `json:"completed_courses"`
		TotalHours       int `json:"total_hours"`
		Certificates     int `json:"certificates"`
	}

	Dashboard struct {
		Enrollments []DashboardEntry `json:"enrollments"`
		Stats       DashboardStats   `json:"stats"`
	}

	// LessonView is a lesson ready for display.
	LessonView struct {
		course.Lesson
		HTML      string `json:"html"`
		Completed bool   `json:"completed"`
	}

	LearnView struct {
		Course     course.Course    `json:"course"`
		Lessons    []LessonView     `json:"lessons"`
		Progress   []LessonProgress `json:"progress"`
		Completion int              `json:"completion"`
	}

	CompletionResult struct {
		Progress   LessonProgress `json:"progress"`
		Completion int            `json:"completion"`
	}
)

// IsCompleted reports whether the course has been fully completed.
func (e Enrollment) IsCompleted() bool {
	return e.Progress >= 100
}

func newDashboard(entries []DashboardEntry) Dashboard {
	if entries == nil {
		entries = []DashboardEntry{}
	}
	d := Dashboard{Enrollments: entries}
	d.Stats.TotalCourses = len(entries)
	for _, e := range entries {
		if e.IsCompleted() {
			d.Stats.CompletedCourses++
		}
		d.Stats.TotalHours += e.Course.DurationHours
	}
	d.Stats.Certificates = d.Stats.CompletedCourses
	return d
}

// CompletionPercentage returns the rounded percentage of lessons with a completed progress record.
// Progress on lessons outside of `lessons` is ignored.
func CompletionPercentage(lessons []course.Lesson, progress []LessonProgress) int {
	if len(lessons) == 0 {
		return 0
	}
	done := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.Completed {
			done[p.LessonID] = true
		}
	}
	var completed int
	for _, l := range lessons {
		if done[l.ID] {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(lessons)) * 100))
}
