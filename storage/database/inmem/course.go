package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, outline course.Outline) (course.Outline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs := outline.Course
	repo.db.courses[crs.ID] = &crs
	for _, mod := range outline.Modules {
		m := mod
		m.Lessons = nil
		repo.db.modules[m.ID] = &m
		for _, lsn := range mod.Lessons {
			l := lsn
			repo.db.lessons[l.ID] = &l
		}
	}
	return outline, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, crs.Title, crs.Description) {
				continue
			}
			if filter.Category != "" && crs.Category != filter.Category {
				continue
			}
			if filter.Level != "" && crs.Level != filter.Level {
				continue
			}
			if filter.Published != nil && crs.IsPublished != *filter.Published {
				continue
			}
		}
		courses = append(courses, *crs)
	}

	sortSlice(courses, ordering, func(crs course.Course, field string) interface{} {
		switch field {
		case "updated_at":
			return crs.UpdatedAt
		case "title":
			return crs.Title
		case "price":
			return crs.Price
		case "duration_hours":
			return crs.DurationHours
		case "category":
			return crs.Category
		case "level":
			return crs.Level
		default:
			return crs.CreatedAt
		}
	})
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

// DeleteCourse deletes a course and everything that belongs to it.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)

	for mid, m := range repo.db.modules {
		if m.CourseID == id {
			delete(repo.db.modules, mid)
		}
	}
	for lid, l := range repo.db.lessons {
		if l.CourseID != id {
			continue
		}
		delete(repo.db.lessons, lid)
		for pid, p := range repo.db.lessonProgress {
			if p.LessonID == lid {
				delete(repo.db.lessonProgress, pid)
			}
		}
	}
	for mid, m := range repo.db.media {
		if m.CourseID == id {
			delete(repo.db.media, mid)
		}
	}
	for eid, e := range repo.db.enrollments {
		if e.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	return nil
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	modules := make([]course.Module, 0)
	idx := make(map[string]int)
	for _, m := range repo.db.modules {
		if m.CourseID == courseID {
			mod := *m
			mod.Lessons = make([]course.Lesson, 0)
			modules = append(modules, mod)
		}
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].OrderIndex < modules[j].OrderIndex })
	for i, m := range modules {
		idx[m.ID] = i
	}

	for _, l := range repo.db.lessons {
		if i, ok := idx[l.ModuleID]; ok && l.CourseID == courseID {
			modules[i].Lessons = append(modules[i].Lessons, *l)
		}
	}
	for i := range modules {
		lessons := modules[i].Lessons
		sort.SliceStable(lessons, func(a, b int) bool { return lessons[a].OrderIndex < lessons[b].OrderIndex })
	}
	return modules, nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) CreateMedia(_ context.Context, m course.Media) (course.Media, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[m.CourseID]; !ok {
		return course.Media{}, course.ErrNotFound
	}
	repo.db.media[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) Stats(_ context.Context) (course.Stats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := course.Stats{
		TotalCourses:     len(repo.db.courses),
		TotalEnrollments: len(repo.db.enrollments),
	}
	for _, crs := range repo.db.courses {
		if crs.IsPublished {
			stats.PublishedCourses++
		}
	}
	return stats, nil
}
