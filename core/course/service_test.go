package course_test

import (
	"context"
	"io"
	"io/ioutil"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/storage/database/inmem"
	"github.com/trezcool/courselogic/tests"
)

type memStorage struct {
	mu    sync.Mutex
	files map[string]string
}

func (s *memStorage) Upload(_ context.Context, path string, r io.Reader, _ string) error {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string]string)
	}
	s.files[path] = string(b)
	return nil
}

func (s *memStorage) PublicURL(path string) string {
	return "https://cdn.test/" + path
}

func setup() (course.Service, course.Repository, *memStorage) {
	db := inmemdb.Open()
	repo := inmemdb.NewCourseRepository(db)
	storage := new(memStorage)
	return course.NewService(repo, storage), repo, storage
}

func TestService_Create(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	outline, err := svc.Create(ctx, course.Draft{
		Title:    "Go 101",
		Price:    49,
		IsFree:   true,
		Category: "Programming",
		Level:    course.LevelBeginner,
		Modules: []course.ModuleDraft{
			{Title: "Basics", Lessons: []course.LessonDraft{
				{Title: "Hello", Content: "**hi**"},
				{Title: "  ", Content: "untitled"},
			}},
			{Lessons: []course.LessonDraft{{Title: "Types"}}},
		},
	}, "instructor-1")
	require.NoError(t, err)

	crs := outline.Course
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, "instructor-1", crs.InstructorID)
	assert.Zero(t, crs.Price, "free courses cost nothing")
	assert.False(t, crs.CreatedAt.IsZero())

	require.Len(t, outline.Modules, 2)
	assert.Equal(t, "Basics", outline.Modules[0].Title)
	assert.Equal(t, "Module 2", outline.Modules[1].Title)
	assert.Equal(t, 1, outline.Modules[1].OrderIndex)

	lessons := outline.Modules[0].Lessons
	require.Len(t, lessons, 2)
	assert.Equal(t, "Hello", lessons[0].Title)
	assert.Equal(t, "**hi**", lessons[0].Content.String())
	assert.Equal(t, "Lesson 2", lessons[1].Title)
	assert.Equal(t, 1, lessons[1].OrderIndex)
	assert.Equal(t, crs.ID, lessons[1].CourseID)
	assert.Equal(t, outline.Modules[0].ID, lessons[1].ModuleID)

	t.Run("outline is stored in order", func(t *testing.T) {
		got, err := svc.Outline(ctx, crs.ID, false)
		require.NoError(t, err)
		require.Len(t, got.Modules, 2)
		assert.Equal(t, outline.Modules[0].ID, got.Modules[0].ID)

		titles := make([]string, 0)
		for _, l := range got.Lessons() {
			titles = append(titles, l.Title)
		}
		assert.Equal(t, []string{"Hello", "Lesson 2", "Types"}, titles)
	})

	t.Run("unpublished outline is hidden from the catalog", func(t *testing.T) {
		_, err := svc.Outline(ctx, crs.ID, true)
		assert.Equal(t, course.ErrNotFound, err)
	})
}

func TestService_Catalog(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()

	older := testutil.CreateCourse(t, repo, "Older", true, 1, 1)
	newer := testutil.CreateCourse(t, repo, "Newer", true, 1, 1, older.Course.CreatedAt.Add(1))
	testutil.CreateCourse(t, repo, "Draft", false, 1, 1)

	tests := []struct {
		name   string
		filter *course.QueryFilter
		want   []string
	}{
		{name: "published, newest first", want: []string{newer.Course.ID, older.Course.ID}},
		{name: "search", filter: &course.QueryFilter{Search: "old"}, want: []string{older.Course.ID}},
		{name: "search never returns drafts", filter: &course.QueryFilter{Search: "draft"}, want: []string{}},
		{name: "category", filter: &course.QueryFilter{Category: "Design"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := svc.Catalog(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(courses))
			for _, c := range courses {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_UpdateAndPublish(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()
	outline := testutil.CreateCourse(t, repo, "Go", false, 1, 1)
	id := outline.Course.ID

	title := "Go, again"
	price := 10.0
	notFree := false
	crs, err := svc.Update(ctx, id, course.UpdateCourse{Title: &title, Price: &price, IsFree: &notFree})
	require.NoError(t, err)
	assert.Equal(t, title, crs.Title)
	assert.Equal(t, price, crs.Price)
	assert.Equal(t, outline.Course.Category, crs.Category, "untouched")

	_, err = svc.GetPublished(ctx, id)
	assert.Equal(t, course.ErrNotFound, err)

	crs, err = svc.SetPublished(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, crs.IsPublished)

	crs, err = svc.GetPublished(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, title, crs.Title)

	_, err = svc.Update(ctx, "nope", course.UpdateCourse{Title: &title})
	assert.Equal(t, course.ErrNotFound, err)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = svc.GetLesson(ctx, outline.Modules[0].Lessons[0].ID)
	assert.Equal(t, course.ErrLessonNotFound, err)
	assert.Equal(t, course.ErrNotFound, svc.Delete(ctx, id))
}

func TestService_UploadThumbnail(t *testing.T) {
	svc, _, storage := setup()
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		contentType string
		wantErr     bool
	}{
		{name: "no name", filename: " ", contentType: "image/png", wantErr: true},
		{name: "not an image", filename: "doc.pdf", contentType: "application/pdf", wantErr: true},
		{name: "image", filename: "my cover.png", contentType: "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := svc.UploadThumbnail(ctx, tt.filename, strings.NewReader("png"), tt.contentType)
			if tt.wantErr {
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok, "want a validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(url, "https://cdn.test/course_thumbnails/"), url)
			assert.True(t, strings.HasSuffix(url, "-my_cover.png"), url)

			path := strings.TrimPrefix(url, "https://cdn.test/")
			assert.Equal(t, "png", storage.files[path])
		})
	}
}

func TestService_UploadMedia(t *testing.T) {
	svc, repo, storage := setup()
	ctx := context.Background()
	outline := testutil.CreateCourse(t, repo, "Go", true, 1, 1)
	other := testutil.CreateCourse(t, repo, "Other", true, 1, 1)
	lessonID := outline.Modules[0].Lessons[0].ID

	tests := []struct {
		name          string
		nm            course.NewMedia
		wantErr       error
		wantMediaType string
	}{
		{
			name:    "unknown course",
			nm:      course.NewMedia{CourseID: "nope", Filename: "a.png", ContentType: "image/png"},
			wantErr: course.ErrNotFound,
		},
		{
			name:    "lesson of another course",
			nm:      course.NewMedia{CourseID: other.Course.ID, LessonID: lessonID, Filename: "a.png", ContentType: "image/png"},
			wantErr: course.ErrLessonNotFound,
		},
		{
			name:          "video",
			nm:            course.NewMedia{CourseID: outline.Course.ID, LessonID: lessonID, Filename: "intro.mp4", ContentType: "video/mp4", Size: 3},
			wantMediaType: course.MediaVideo,
		},
		{
			name:          "document",
			nm:            course.NewMedia{CourseID: outline.Course.ID, Filename: "notes.pdf", ContentType: "application/pdf", Size: 3},
			wantMediaType: course.MediaDocument,
		},
		{
			name:          "explicit type",
			nm:            course.NewMedia{CourseID: outline.Course.ID, MediaType: course.MediaImage, Filename: "raw.bin", Size: 3},
			wantMediaType: course.MediaImage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := svc.UploadMedia(ctx, tt.nm, strings.NewReader("abc"))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMediaType, m.MediaType)
			assert.Equal(t, tt.nm.Filename, m.MediaName)
			assert.Equal(t, int64(3), m.FileSize)
			assert.True(t, strings.HasSuffix(m.MediaURL, "-"+tt.nm.Filename), m.MediaURL)
			assert.Equal(t, "abc", storage.files[strings.TrimPrefix(m.MediaURL, "https://cdn.test/")])
		})
	}
}

func TestService_Stats(t *testing.T) {
	svc, repo, _ := setup()
	testutil.CreateCourse(t, repo, "A", true, 1, 1)
	testutil.CreateCourse(t, repo, "B", false, 1, 1)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, course.Stats{TotalCourses: 2, PublishedCourses: 1}, stats)
}

func TestDraft_Validate(t *testing.T) {
	validate, translator := validator.New(), core.NewTranslator()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	tests := []struct {
		name      string
		draft     course.Draft
		wantField string
	}{
		{name: "valid", draft: course.Draft{Title: " Go ", Level: "Beginner", Category: "Programming"}},
		{name: "blank title", draft: course.Draft{Title: "  "}, wantField: "title"},
		{name: "unknown level", draft: course.Draft{Title: "Go", Level: "expert"}, wantField: "level"},
		{name: "unknown category", draft: course.Draft{Title: "Go", Category: "Cooking"}, wantField: "category"},
		{name: "negative price", draft: course.Draft{Title: "Go", Price: -1}, wantField: "price"},
		{
			name:      "bad lesson video url",
			draft:     course.Draft{Title: "Go", Modules: []course.ModuleDraft{{Lessons: []course.LessonDraft{{VideoURL: "nope"}}}}},
			wantField: "video_url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate(validate)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "Go", tt.draft.Title)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validation errors, got %v", err)
			assert.Equal(t, tt.wantField, verrs[0].Field())
		})
	}
}
