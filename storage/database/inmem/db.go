package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/user"
)

type (
	// DB is an in-memory stand-in for the relational store. One lock guards all tables
	// so that multi-table writes (course outlines, cascades) stay atomic.
	DB struct {
		mutex sync.RWMutex

		users          map[string]*user.User
		courses        map[string]*course.Course
		modules        map[string]*course.Module // without lessons
		lessons        map[string]*course.Lesson
		media          map[string]*course.Media
		enrollments    map[string]*enrollment.Enrollment
		lessonProgress map[string]*enrollment.LessonProgress
	}
)

func Open() *DB {
	return &DB{
		users:          make(map[string]*user.User),
		courses:        make(map[string]*course.Course),
		modules:        make(map[string]*course.Module),
		lessons:        make(map[string]*course.Lesson),
		media:          make(map[string]*course.Media),
		enrollments:    make(map[string]*enrollment.Enrollment),
		lessonProgress: make(map[string]*enrollment.LessonProgress),
	}
}

// compare returns -1, 0 or +1 depending on how a & b (of the same type) order.
func compare(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
