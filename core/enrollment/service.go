package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
)

var (
	// errors
	ErrNotFound         = errors.New("enrollment not found")
	ErrAlreadyEnrolled  = errors.New("already enrolled in this course")
	ErrNotEnrolled      = errors.New("you are not enrolled in this course")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled if the user is already enrolled in the course.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		// QueryEnrollments returns the enrollments of a user with their course, newest first.
		QueryEnrollments(ctx context.Context, userID string) ([]DashboardEntry, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// UpsertLessonProgress creates or replaces the progress of a user on a lesson.
		UpsertLessonProgress(ctx context.Context, p LessonProgress) (LessonProgress, error)
		QueryLessonProgress(ctx context.Context, userID string, lessonIDs []string) ([]LessonProgress, error)
	}

	Service interface {
		Enroll(ctx context.Context, userID, courseID string) (Enrollment, error)
		IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
		Dashboard(ctx context.Context, userID string) (Dashboard, error)
		Learn(ctx context.Context, userID string, isAdmin bool, courseID string) (LearnView, error)
		MarkLessonComplete(ctx context.Context, userID string, isAdmin bool, lessonID string) (CompletionResult, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		renderer  *content.Renderer
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseSvc course.Service, renderer *content.Renderer) Service {
	if renderer == nil {
		renderer = content.NewRenderer(false)
	}
	return &service{repo: repo, courseSvc: courseSvc, renderer: renderer}
}

// Enroll enrolls a user in a published course. Enrolling twice returns the existing enrollment.
func (svc *service) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	if _, err := svc.courseSvc.GetPublished(ctx, courseID); err != nil {
		return Enrollment{}, err
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.New().String(),
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: nowFunc().UTC(),
	})
	if errors.Cause(err) == ErrAlreadyEnrolled {
		return svc.repo.GetEnrollment(ctx, userID, courseID)
	}
	return enr, err
}

func (svc *service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, courseID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	entries, err := svc.repo.QueryEnrollments(ctx, userID)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying enrollments")
	}
	return newDashboard(entries), nil
}

// Learn returns a course with its lessons rendered for display. Admins need not be enrolled.
func (svc *service) Learn(ctx context.Context, userID string, isAdmin bool, courseID string) (LearnView, error) {
	if !isAdmin {
		enrolled, err := svc.IsEnrolled(ctx, userID, courseID)
		if err != nil {
			return LearnView{}, errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return LearnView{}, ErrNotEnrolled
		}
	}

	outline, err := svc.courseSvc.Outline(ctx, courseID, false)
	if err != nil {
		return LearnView{}, err
	}
	lessons := outline.Lessons()

	progress, err := svc.lessonProgress(ctx, userID, lessons)
	if err != nil {
		return LearnView{}, err
	}
	done := make(map[string]bool, len(progress))
	for _, p := range progress {
		done[p.LessonID] = p.Completed
	}

	views := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, LessonView{
			Lesson:    l,
			HTML:      svc.renderer.Render(l.Content),
			Completed: done[l.ID],
		})
	}

	return LearnView{
		Course:     outline.Course,
		Lessons:    views,
		Progress:   progress,
		Completion: CompletionPercentage(lessons, progress),
	}, nil
}

func (svc *service) lessonProgress(ctx context.Context, userID string, lessons []course.Lesson) ([]LessonProgress, error) {
	if len(lessons) == 0 {
		return []LessonProgress{}, nil
	}
	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	progress, err := svc.repo.QueryLessonProgress(ctx, userID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	if progress == nil {
		progress = []LessonProgress{}
	}
	return progress, nil
}

// MarkLessonComplete records a completed lesson and updates the progress of the enrollment.
// An enrollment reaching 100% is marked as completed.
func (svc *service) MarkLessonComplete(ctx context.Context, userID string, isAdmin bool, lessonID string) (CompletionResult, error) {
	lsn, err := svc.courseSvc.GetLesson(ctx, lessonID)
	if err != nil {
		return CompletionResult{}, err
	}

	enr, err := svc.repo.GetEnrollment(ctx, userID, lsn.CourseID)
	enrolled := err == nil
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return CompletionResult{}, errors.Wrap(err, "finding enrollment")
		}
		if !isAdmin {
			return CompletionResult{}, ErrNotEnrolled
		}
	}

	now := nowFunc().UTC()
	progress, err := svc.repo.UpsertLessonProgress(ctx, LessonProgress{
		ID:          uuid.New().String(),
		UserID:      userID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: &now,
	})
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "saving lesson progress")
	}

	lessons, err := svc.courseSvc.Lessons(ctx, lsn.CourseID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "querying lessons")
	}
	all, err := svc.lessonProgress(ctx, userID, lessons)
	if err != nil {
		return CompletionResult{}, err
	}
	pct := CompletionPercentage(lessons, all)

	if enrolled && float64(pct) != enr.Progress {
		enr.Progress = float64(pct)
		if enr.IsCompleted() && enr.CompletedAt == nil {
			enr.CompletedAt = &now
		}
		if _, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
			return CompletionResult{}, errors.Wrap(err, "updating enrollment progress")
		}
	}

	return CompletionResult{Progress: progress, Completion: pct}, nil
}
