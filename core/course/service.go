package course

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")

	nowFunc = time.Now // mockable

	thumbnailsDir = "course_thumbnails"
	whitespace    = regexp.MustCompile(`\s`)
)

type (
	Repository interface {
		// CreateCourse stores a course with its modules & lessons, atomically.
		CreateCourse(ctx context.Context, outline Outline) (Outline, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		// QueryModules returns the modules of a course, with their lessons, ordered by order_index.
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		CreateMedia(ctx context.Context, m Media) (Media, error)
		Stats(ctx context.Context) (Stats, error)
	}

	Service interface {
		Create(ctx context.Context, d Draft, instructorID string) (Outline, error)
		Get(ctx context.Context, id string) (Course, error)
		GetPublished(ctx context.Context, id string) (Course, error)
		Outline(ctx context.Context, id string, publishedOnly bool) (Outline, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Catalog(ctx context.Context, filter *QueryFilter) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		SetPublished(ctx context.Context, id string, published bool) (Course, error)
		Delete(ctx context.Context, id string) error
		Lessons(ctx context.Context, courseID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		UploadThumbnail(ctx context.Context, filename string, r io.Reader, contentType string) (string, error)
		UploadMedia(ctx context.Context, nm NewMedia, r io.Reader) (Media, error)
		Stats(ctx context.Context) (Stats, error)
	}

	service struct {
		repo    Repository
		storage core.ObjectStorage
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, storage core.ObjectStorage) Service {
	return &service{repo: repo, storage: storage}
}

var orderingFields = []string{"created_at", "updated_at", "title", "price", "duration_hours", "category", "level"}

// Create stores a draft. Blank module & lesson titles get a default one based on their position.
func (svc *service) Create(ctx context.Context, d Draft, instructorID string) (Outline, error) {
	now := nowFunc().UTC()
	crs := Course{
		ID:            uuid.New().String(),
		Title:         d.Title,
		Description:   d.Description,
		ThumbnailURL:  d.ThumbnailURL,
		Price:         d.Price,
		IsFree:        d.IsFree,
		IsPublished:   d.IsPublished,
		InstructorID:  instructorID,
		Category:      d.Category,
		DurationHours: d.DurationHours,
		Level:         d.Level,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if crs.IsFree {
		crs.Price = 0
	}

	modules := make([]Module, 0, len(d.Modules))
	for mi, md := range d.Modules {
		mod := Module{
			ID:          uuid.New().String(),
			CourseID:    crs.ID,
			Title:       core.CleanString(md.Title),
			Description: md.Description,
			OrderIndex:  mi,
			Lessons:     make([]Lesson, 0, len(md.Lessons)),
		}
		if mod.Title == "" {
			mod.Title = fmt.Sprintf("Module %d", mi+1)
		}

		for li, ld := range md.Lessons {
			lsn := Lesson{
				ID:              uuid.New().String(),
				CourseID:        crs.ID,
				ModuleID:        mod.ID,
				Title:           core.CleanString(ld.Title),
				Content:         content.New(ld.Content),
				VideoURL:        ld.VideoURL,
				OrderIndex:      li,
				DurationMinutes: ld.DurationMinutes,
			}
			if lsn.Title == "" {
				lsn.Title = fmt.Sprintf("Lesson %d", li+1)
			}
			mod.Lessons = append(mod.Lessons, lsn)
		}
		modules = append(modules, mod)
	}

	return svc.repo.CreateCourse(ctx, Outline{Course: crs, Modules: modules})
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// GetPublished hides unpublished courses as if they did not exist.
func (svc *service) GetPublished(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !crs.IsPublished {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) Outline(ctx context.Context, id string, publishedOnly bool) (Outline, error) {
	var crs Course
	var err error
	if publishedOnly {
		crs, err = svc.GetPublished(ctx, id)
	} else {
		crs, err = svc.Get(ctx, id)
	}
	if err != nil {
		return Outline{}, err
	}

	modules, err := svc.repo.QueryModules(ctx, id)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []Module{}
	}
	return Outline{Course: crs, Modules: modules}, nil
}

// Query lists courses, newest first unless ordered otherwise.
func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	ordering = core.CleanOrderings(ordering, orderingFields...)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// Catalog lists the published courses, newest first.
func (svc *service) Catalog(ctx context.Context, filter *QueryFilter) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	published := true
	filter.Published = &published
	return svc.Query(ctx, filter, nil)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	uc.apply(&crs)
	crs.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) SetPublished(ctx context.Context, id string, published bool) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.IsPublished == published {
		return crs, nil
	}
	crs.IsPublished = published
	crs.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Lessons returns the lessons of a course in reading order.
func (svc *service) Lessons(ctx context.Context, courseID string) ([]Lesson, error) {
	modules, err := svc.repo.QueryModules(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	return Outline{Modules: modules}.Lessons(), nil
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

// storageName prefixes a file name with the current unix time in ms and replaces its whitespace.
func storageName(filename string) string {
	return fmt.Sprintf("%d-%s", nowFunc().UnixNano()/int64(time.Millisecond), whitespace.ReplaceAllString(filename, "_"))
}

// UploadThumbnail stores a course thumbnail and returns its public URL.
func (svc *service) UploadThumbnail(ctx context.Context, filename string, r io.Reader, contentType string) (string, error) {
	filename = core.CleanString(filename)
	if filename == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", core.NewValidationError(nil, core.FieldError{Field: "file", Error: "thumbnail must be an image"})
	}

	path := thumbnailsDir + "/" + storageName(filename)
	if err := svc.storage.Upload(ctx, path, r, contentType); err != nil {
		return "", errors.Wrap(err, "uploading thumbnail")
	}
	return svc.storage.PublicURL(path), nil
}

// UploadMedia stores a lesson media file and records it against its course.
func (svc *service) UploadMedia(ctx context.Context, nm NewMedia, r io.Reader) (Media, error) {
	if _, err := svc.repo.GetCourse(ctx, nm.CourseID); err != nil {
		return Media{}, err
	}
	if nm.LessonID != "" {
		lsn, err := svc.repo.GetLesson(ctx, nm.LessonID)
		if err != nil {
			return Media{}, err
		}
		if lsn.CourseID != nm.CourseID {
			return Media{}, ErrLessonNotFound
		}
	}

	mediaType := nm.MediaType
	if mediaType == "" {
		mediaType = mediaTypeOf(nm.ContentType)
	}

	path := storageName(nm.Filename)
	if err := svc.storage.Upload(ctx, path, r, nm.ContentType); err != nil {
		return Media{}, errors.Wrap(err, "uploading media")
	}

	return svc.repo.CreateMedia(ctx, Media{
		ID:        uuid.New().String(),
		CourseID:  nm.CourseID,
		LessonID:  nm.LessonID,
		MediaType: mediaType,
		MediaURL:  svc.storage.PublicURL(path),
		MediaName: nm.Filename,
		FileSize:  nm.Size,
		CreatedAt: nowFunc().UTC(),
	})
}

func mediaTypeOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	default:
		return MediaDocument
	}
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.Stats(ctx)
}
