package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/courselogic/core/enrollment"
)

const enrollmentColumns = `id, user_id, course_id, enrolled_at, completed_at, progress`

type (
	enrollmentRow struct {
		ID          string    `db:"id"`
		UserID      string    `db:"user_id"`
		CourseID    string    `db:"course_id"`
		EnrolledAt  time.Time `db:"enrolled_at"`
		CompletedAt null.Time `db:"completed_at"`
		Progress    float64   `db:"progress"`
	}

	dashboardRow struct {
		enrollmentRow
		CourseTitle         string      `db:"course_title"`
		CourseDescription   null.String `db:"course_description"`
		CourseThumbnailURL  null.String `db:"course_thumbnail_url"`
		CourseCategory      null.String `db:"course_category"`
		CourseDurationHours null.Int    `db:"course_duration_hours"`
	}

	progressRow struct {
		ID          string    `db:"id"`
		UserID      string    `db:"user_id"`
		LessonID    string    `db:"lesson_id"`
		Completed   bool      `db:"completed"`
		CompletedAt null.Time `db:"completed_at"`
	}
)

func newEnrollmentRow(e enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:          e.ID,
		UserID:      e.UserID,
		CourseID:    e.CourseID,
		EnrolledAt:  e.EnrolledAt.UTC(),
		CompletedAt: null.TimeFromPtr(e.CompletedAt),
		Progress:    e.Progress,
	}
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:          r.ID,
		UserID:      r.UserID,
		CourseID:    r.CourseID,
		EnrolledAt:  r.EnrolledAt.UTC(),
		CompletedAt: utcPtr(r.CompletedAt),
		Progress:    r.Progress,
	}
}

func (r progressRow) progress() enrollment.LessonProgress {
	return enrollment.LessonProgress{
		ID:          r.ID,
		UserID:      r.UserID,
		LessonID:    r.LessonID,
		Completed:   r.Completed,
		CompletedAt: utcPtr(r.CompletedAt),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	row := newEnrollmentRow(e)
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :user_id, :course_id, :enrolled_at, :completed_at, :progress)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	if !isValidUUID(userID, courseID) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var row enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, userID string) ([]enrollment.DashboardEntry, error) {
	entries := make([]enrollment.DashboardEntry, 0)
	if !isValidUUID(userID) {
		return entries, nil
	}

	var rows []dashboardRow
	q := `SELECT e.id, e.user_id, e.course_id, e.enrolled_at, e.completed_at, e.progress,
			c.title AS course_title, c.description AS course_description, c.thumbnail_url AS course_thumbnail_url,
			c.category AS course_category, c.duration_hours AS course_duration_hours
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1
		ORDER BY e.enrolled_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	for _, r := range rows {
		entries = append(entries, enrollment.DashboardEntry{
			Enrollment: r.enrollment(),
			Course: enrollment.CourseSummary{
				ID:            r.CourseID,
				Title:         r.CourseTitle,
				Description:   r.CourseDescription.String,
				ThumbnailURL:  r.CourseThumbnailURL.String,
				Category:      r.CourseCategory.String,
				DurationHours: r.CourseDurationHours.Int,
			},
		})
	}
	return entries, nil
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	row := newEnrollmentRow(e)
	q := `UPDATE enrollments SET completed_at = :completed_at, progress = :progress WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return row.enrollment(), nil
}

// UpsertLessonProgress keeps the ID of an existing record for the same user & lesson.
func (repo enrollmentRepository) UpsertLessonProgress(ctx context.Context, p enrollment.LessonProgress) (enrollment.LessonProgress, error) {
	row := progressRow{
		ID:          p.ID,
		UserID:      p.UserID,
		LessonID:    p.LessonID,
		Completed:   p.Completed,
		CompletedAt: null.TimeFromPtr(p.CompletedAt),
	}
	q := `INSERT INTO lesson_progress (id, user_id, lesson_id, completed, completed_at)
		VALUES (:id, :user_id, :lesson_id, :completed, :completed_at)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET completed = EXCLUDED.completed, completed_at = EXCLUDED.completed_at
		RETURNING id`

	q, args, err := repo.db.BindNamed(q, row)
	if err != nil {
		return enrollment.LessonProgress{}, errors.Wrap(err, "binding lesson progress")
	}
	if err = repo.db.GetContext(ctx, &row.ID, q, args...); err != nil {
		return enrollment.LessonProgress{}, errors.Wrap(err, "upserting lesson progress")
	}
	return row.progress(), nil
}

func (repo enrollmentRepository) QueryLessonProgress(ctx context.Context, userID string, lessonIDs []string) ([]enrollment.LessonProgress, error) {
	progress := make([]enrollment.LessonProgress, 0)
	if len(lessonIDs) == 0 || !isValidUUID(userID) || !isValidUUID(lessonIDs...) {
		return progress, nil
	}

	q, args, err := sqlx.In(`SELECT id, user_id, lesson_id, completed, completed_at FROM lesson_progress
		WHERE user_id = ? AND lesson_id IN (?) ORDER BY lesson_id`, userID, lessonIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building lesson progress query")
	}
	var rows []progressRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	for _, r := range rows {
		progress = append(progress, r.progress())
	}
	return progress, nil
}
