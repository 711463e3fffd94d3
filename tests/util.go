package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	suspended bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	status := user.StatusActive
	if suspended {
		status = user.StatusSuspended
	}
	usr := user.User{
		ID:        uuid.New().String(),
		FullName:  name,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse stores a course with `modules` modules of `lessons` lessons each.
// Lesson contents are "Lesson <module>.<lesson>".
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title string,
	published bool,
	modules, lessons int,
	createdAt ...time.Time,
) course.Outline {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs := course.Course{
		ID:            uuid.New().String(),
		Title:         title,
		Description:   "About " + title,
		IsFree:        true,
		IsPublished:   published,
		Category:      "Programming",
		Level:         course.LevelBeginner,
		DurationHours: 2,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	outline := course.Outline{Course: crs, Modules: make([]course.Module, 0, modules)}
	for mi := 0; mi < modules; mi++ {
		mod := course.Module{
			ID:         uuid.New().String(),
			CourseID:   crs.ID,
			Title:      "Module " + strconv.Itoa(mi+1),
			OrderIndex: mi,
		}
		for li := 0; li < lessons; li++ {
			mod.Lessons = append(mod.Lessons, course.Lesson{
				ID:              uuid.New().String(),
				CourseID:        crs.ID,
				ModuleID:        mod.ID,
				Title:           "Lesson " + strconv.Itoa(li+1),
				Content:         content.New("Lesson " + strconv.Itoa(mi+1) + "." + strconv.Itoa(li+1)),
				OrderIndex:      li,
				DurationMinutes: 10,
			})
		}
		outline.Modules = append(outline.Modules, mod)
	}

	outline, err := repo.CreateCourse(context.Background(), outline)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return outline
}
