package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/user"
	"github.com/trezcool/courselogic/storage/database"
	sqlxrepos "github.com/trezcool/courselogic/storage/database/sqlx"
	"github.com/trezcool/courselogic/tests"
)

// prepareDB connects to the test database and wipes it. Set DATABASE_TESTS=1 to run against a live postgres.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("DATABASE_TESTS") == "" {
		t.Skip("DATABASE_TESTS not set")
	}

	conf := core.NewConfig()
	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB))
	_, err = db.Exec(`TRUNCATE users, courses CASCADE`)
	require.NoError(t, err)
	return db
}

func TestUserRepository(t *testing.T) {
	db := prepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	alice := testutil.CreateUser(t, repo, "Alice", "alice@test.cd", "pwd", user.RoleAdmin, false, now.Add(-time.Hour))
	bob := testutil.CreateUser(t, repo, "Bob", "bob@test.cd", "", user.RoleStudent, true, now)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, user.User{ID: uuid.New().String(), Email: alice.Email, Role: user.RoleStudent, Status: user.StatusActive, CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrEmailExists, err)
		assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, alice.Email, nil))
		assert.NoError(t, repo.CheckEmailUniqueness(ctx, alice.Email, []user.User{alice}))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{Email: bob.Email})
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)
		assert.True(t, got.IsSuspended())

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{ID: uuid.New().String()})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "ALI"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, alice.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "created_at"}, {Field: "1; DROP TABLE users"}})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, bob.ID, users[0].ID)
	})

	t.Run("update & delete", func(t *testing.T) {
		bob.FullName = "Bobby"
		bob.LastLogin = now
		_, err := repo.UpdateUser(ctx, bob)
		require.NoError(t, err)
		got, err := repo.GetUser(ctx, user.GetFilter{ID: bob.ID})
		require.NoError(t, err)
		assert.Equal(t, "Bobby", got.FullName)
		assert.True(t, now.Equal(got.LastLogin))

		n, err := repo.DeleteUsersByID(ctx, []string{bob.ID, "nope"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestCourseAndEnrollmentRepositories(t *testing.T) {
	db := prepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	crsRepo := sqlxrepos.NewCourseRepository(db)
	enrRepo := sqlxrepos.NewEnrollmentRepository(db)
	ctx := context.Background()

	student := testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false)
	outline := testutil.CreateCourse(t, crsRepo, "Go 101", true, 2, 3)

	t.Run("outline", func(t *testing.T) {
		crs, err := crsRepo.GetCourse(ctx, outline.Course.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go 101", crs.Title)

		modules, err := crsRepo.QueryModules(ctx, crs.ID)
		require.NoError(t, err)
		require.Len(t, modules, 2)
		require.Len(t, modules[1].Lessons, 3)
		assert.Equal(t, "Lesson 2.3", modules[1].Lessons[2].Content.String())

		lsn, err := crsRepo.GetLesson(ctx, modules[0].Lessons[0].ID)
		require.NoError(t, err)
		assert.Equal(t, modules[0].Lessons[0], lsn)
	})

	t.Run("enrollment", func(t *testing.T) {
		e := enrollment.Enrollment{ID: uuid.New().String(), UserID: student.ID, CourseID: outline.Course.ID, EnrolledAt: time.Now()}
		_, err := enrRepo.CreateEnrollment(ctx, e)
		require.NoError(t, err)
		_, err = enrRepo.CreateEnrollment(ctx, enrollment.Enrollment{ID: uuid.New().String(), UserID: student.ID, CourseID: outline.Course.ID, EnrolledAt: time.Now()})
		assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)

		lessonID := outline.Modules[0].Lessons[0].ID
		done := time.Now()
		first, err := enrRepo.UpsertLessonProgress(ctx, enrollment.LessonProgress{ID: uuid.New().String(), UserID: student.ID, LessonID: lessonID, Completed: true, CompletedAt: &done})
		require.NoError(t, err)
		again, err := enrRepo.UpsertLessonProgress(ctx, enrollment.LessonProgress{ID: uuid.New().String(), UserID: student.ID, LessonID: lessonID, Completed: true, CompletedAt: &done})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		progress, err := enrRepo.QueryLessonProgress(ctx, student.ID, []string{lessonID})
		require.NoError(t, err)
		assert.Len(t, progress, 1)

		entries, err := enrRepo.QueryEnrollments(ctx, student.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Go 101", entries[0].Course.Title)

		stats, err := crsRepo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, course.Stats{TotalCourses: 1, PublishedCourses: 1, TotalEnrollments: 1}, stats)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, crsRepo.DeleteCourse(ctx, outline.Course.ID))
		assert.Equal(t, course.ErrNotFound, crsRepo.DeleteCourse(ctx, outline.Course.ID))
		_, err := enrRepo.GetEnrollment(ctx, student.ID, outline.Course.ID)
		assert.Equal(t, enrollment.ErrNotFound, err)
	})
}
