package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/courselogic/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) find(userID, courseID string) *enrollment.Enrollment {
	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e
		}
	}
	return nil
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.find(e.UserID, e.CourseID) != nil {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e := repo.find(userID, courseID); e != nil {
		return *e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, userID string) ([]enrollment.DashboardEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]enrollment.DashboardEntry, 0)
	for _, e := range repo.db.enrollments {
		if e.UserID != userID {
			continue
		}
		entry := enrollment.DashboardEntry{Enrollment: *e}
		if crs, ok := repo.db.courses[e.CourseID]; ok {
			entry.Course = enrollment.CourseSummary{
				ID:            crs.ID,
				Title:         crs.Title,
				Description:   crs.Description,
				ThumbnailURL:  crs.ThumbnailURL,
				Category:      crs.Category,
				DurationHours: crs.DurationHours,
			}
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].EnrolledAt.After(entries[j].EnrolledAt) })
	return entries, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

// UpsertLessonProgress keeps the ID of an existing record for the same user & lesson.
func (repo *enrollmentRepository) UpsertLessonProgress(_ context.Context, p enrollment.LessonProgress) (enrollment.LessonProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, existing := range repo.db.lessonProgress {
		if existing.UserID == p.UserID && existing.LessonID == p.LessonID {
			p.ID = id
			break
		}
	}
	repo.db.lessonProgress[p.ID] = &p
	return p, nil
}

func (repo *enrollmentRepository) QueryLessonProgress(_ context.Context, userID string, lessonIDs []string) ([]enrollment.LessonProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		wanted[id] = true
	}
	progress := make([]enrollment.LessonProgress, 0)
	for _, p := range repo.db.lessonProgress {
		if p.UserID == userID && wanted[p.LessonID] {
			progress = append(progress, *p)
		}
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].LessonID < progress[j].LessonID })
	return progress, nil
}
