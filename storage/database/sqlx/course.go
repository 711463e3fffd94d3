package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
)

const (
	courseColumns = `id, title, description, thumbnail_url, price, is_free, is_published, instructor_id, category, duration_hours, level, created_at, updated_at`
	moduleColumns = `id, course_id, title, description, order_index`
	lessonColumns = `id, course_id, module_id, title, content, video_url, order_index, duration_minutes`
)

var courseOrderings = []string{"created_at", "updated_at", "title", "price", "duration_hours", "category", "level"}

type (
	courseRow struct {
		ID            string      `db:"id"`
		Title         string      `db:"title"`
		Description   null.String `db:"description"`
		ThumbnailURL  null.String `db:"thumbnail_url"`
		Price         float64     `db:"price"`
		IsFree        bool        `db:"is_free"`
		IsPublished   bool        `db:"is_published"`
		InstructorID  null.String `db:"instructor_id"`
		Category      null.String `db:"category"`
		DurationHours null.Int    `db:"duration_hours"`
		Level         null.String `db:"level"`
		CreatedAt     time.Time   `db:"created_at"`
		UpdatedAt     time.Time   `db:"updated_at"`
	}

	moduleRow struct {
		ID          string      `db:"id"`
		CourseID    string      `db:"course_id"`
		Title       string      `db:"title"`
		Description null.String `db:"description"`
		OrderIndex  null.Int    `db:"order_index"`
	}

	lessonRow struct {
		ID              string           `db:"id"`
		CourseID        string           `db:"course_id"`
		ModuleID        string           `db:"module_id"`
		Title           string           `db:"title"`
		Content         *content.Content `db:"content"`
		VideoURL        null.String      `db:"video_url"`
		OrderIndex      null.Int         `db:"order_index"`
		DurationMinutes null.Int         `db:"duration_minutes"`
	}

	mediaRow struct {
		ID        string      `db:"id"`
		CourseID  string      `db:"course_id"`
		LessonID  null.String `db:"lesson_id"`
		MediaType string      `db:"media_type"`
		MediaURL  string      `db:"media_url"`
		MediaName null.String `db:"media_name"`
		FileSize  null.Int64  `db:"file_size"`
		CreatedAt time.Time   `db:"created_at"`
	}
)

func optString(s string) null.String { return null.NewString(s, s != "") }

func newCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:            c.ID,
		Title:         c.Title,
		Description:   optString(c.Description),
		ThumbnailURL:  optString(c.ThumbnailURL),
		Price:         c.Price,
		IsFree:        c.IsFree,
		IsPublished:   c.IsPublished,
		InstructorID:  optString(c.InstructorID),
		Category:      optString(c.Category),
		DurationHours: null.IntFrom(c.DurationHours),
		Level:         optString(c.Level),
		CreatedAt:     c.CreatedAt.UTC(),
		UpdatedAt:     c.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description.String,
		ThumbnailURL:  r.ThumbnailURL.String,
		Price:         r.Price,
		IsFree:        r.IsFree,
		IsPublished:   r.IsPublished,
		InstructorID:  r.InstructorID.String,
		Category:      r.Category.String,
		DurationHours: r.DurationHours.Int,
		Level:         r.Level.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func (r lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:              r.ID,
		CourseID:        r.CourseID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		Content:         r.Content,
		VideoURL:        r.VideoURL.String,
		OrderIndex:      r.OrderIndex.Int,
		DurationMinutes: r.DurationMinutes.Int,
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// CreateCourse inserts the course, its modules and their lessons in a single transaction.
func (repo courseRepository) CreateCourse(ctx context.Context, outline course.Outline) (_ course.Outline, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return course.Outline{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `INSERT INTO courses (` + courseColumns + `) VALUES (:id, :title, :description, :thumbnail_url, :price, :is_free,
		:is_published, :instructor_id, :category, :duration_hours, :level, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, newCourseRow(outline.Course)); err != nil {
		return course.Outline{}, errors.Wrap(err, "inserting course")
	}

	for _, m := range outline.Modules {
		mr := moduleRow{
			ID:          m.ID,
			CourseID:    m.CourseID,
			Title:       m.Title,
			Description: optString(m.Description),
			OrderIndex:  null.IntFrom(m.OrderIndex),
		}
		q = `INSERT INTO modules (` + moduleColumns + `) VALUES (:id, :course_id, :title, :description, :order_index)`
		if _, err = tx.NamedExecContext(ctx, q, mr); err != nil {
			return course.Outline{}, errors.Wrap(err, "inserting module")
		}

		for _, l := range m.Lessons {
			lr := lessonRow{
				ID:              l.ID,
				CourseID:        l.CourseID,
				ModuleID:        l.ModuleID,
				Title:           l.Title,
				Content:         l.Content,
				VideoURL:        optString(l.VideoURL),
				OrderIndex:      null.IntFrom(l.OrderIndex),
				DurationMinutes: null.IntFrom(l.DurationMinutes),
			}
			q = `INSERT INTO lessons (` + lessonColumns + `) VALUES (:id, :course_id, :module_id, :title, :content,
				:video_url, :order_index, :duration_minutes)`
			if _, err = tx.NamedExecContext(ctx, q, lr); err != nil {
				return course.Outline{}, errors.Wrap(err, "inserting lesson")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return course.Outline{}, errors.Wrap(err, "committing course")
	}
	return outline, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !isValidUUID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	q := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(title ILIKE ? OR description ILIKE ?)`)
			args = append(args, val, val)
		}
		if filter.Category != "" {
			where = append(where, `category = ?`)
			args = append(args, filter.Category)
		}
		if filter.Level != "" {
			where = append(where, `level = ?`)
			args = append(args, filter.Level)
		}
		if filter.Published != nil {
			where = append(where, `is_published = ?`)
			args = append(args, *filter.Published)
		}
	}

	q := `SELECT ` + courseColumns + ` FROM courses` + whereClause(where) + orderByClause(ordering, courseOrderings...)

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	row := newCourseRow(c)
	q := `UPDATE courses SET
		title = :title, description = :description, thumbnail_url = :thumbnail_url, price = :price, is_free = :is_free,
		is_published = :is_published, category = :category, duration_hours = :duration_hours, level = :level,
		updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return row.course(), nil
}

// DeleteCourse deletes a course. Modules, lessons, media, enrollments & progress go along by cascade.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !isValidUUID(id) {
		return course.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID string) ([]course.Module, error) {
	modules := make([]course.Module, 0)
	if !isValidUUID(courseID) {
		return modules, nil
	}

	var mrows []moduleRow
	q := `SELECT ` + moduleColumns + ` FROM modules WHERE course_id = $1 ORDER BY order_index, created_at`
	if err := repo.db.SelectContext(ctx, &mrows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	var lrows []lessonRow
	q = `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1 ORDER BY order_index, created_at`
	if err := repo.db.SelectContext(ctx, &lrows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}

	idx := make(map[string]int, len(mrows))
	for i, r := range mrows {
		idx[r.ID] = i
		modules = append(modules, course.Module{
			ID:          r.ID,
			CourseID:    r.CourseID,
			Title:       r.Title,
			Description: r.Description.String,
			OrderIndex:  r.OrderIndex.Int,
			Lessons:     make([]course.Lesson, 0),
		})
	}
	for _, r := range lrows {
		if i, ok := idx[r.ModuleID]; ok {
			modules[i].Lessons = append(modules[i].Lessons, r.lesson())
		}
	}
	return modules, nil
}

func (repo courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	if !isValidUUID(id) {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	var row lessonRow
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Lesson{}, course.ErrLessonNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "getting lesson")
	}
	return row.lesson(), nil
}

func (repo courseRepository) CreateMedia(ctx context.Context, m course.Media) (course.Media, error) {
	row := mediaRow{
		ID:        m.ID,
		CourseID:  m.CourseID,
		LessonID:  optString(m.LessonID),
		MediaType: m.MediaType,
		MediaURL:  m.MediaURL,
		MediaName: optString(m.MediaName),
		FileSize:  null.Int64From(m.FileSize),
		CreatedAt: m.CreatedAt.UTC(),
	}
	q := `INSERT INTO course_media (id, course_id, lesson_id, media_type, media_url, media_name, file_size, created_at)
		VALUES (:id, :course_id, :lesson_id, :media_type, :media_url, :media_name, :file_size, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isForeignKeyViolation(err) {
			return course.Media{}, course.ErrNotFound
		}
		return course.Media{}, errors.Wrap(err, "inserting media")
	}
	return m, nil
}

func (repo courseRepository) Stats(ctx context.Context) (course.Stats, error) {
	var stats struct {
		Total       int `db:"total"`
		Published   int `db:"published"`
		Enrollments int `db:"enrollments"`
	}
	q := `SELECT
		(SELECT COUNT(*) FROM courses) AS total,
		(SELECT COUNT(*) FROM courses WHERE is_published) AS published,
		(SELECT COUNT(*) FROM enrollments) AS enrollments`
	if err := repo.db.GetContext(ctx, &stats, q); err != nil {
		return course.Stats{}, errors.Wrap(err, "computing course stats")
	}
	return course.Stats{
		TotalCourses:     stats.Total,
		PublishedCourses: stats.Published,
		TotalEnrollments: stats.Enrollments,
	}, nil
}
