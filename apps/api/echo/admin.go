package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/coursegen"
)

type adminApi struct {
	courseSvc course.Service
	genSvc    coursegen.Service
	renderer  *content.Renderer
	validate  *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, api adminApi) {
	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/stats", api.stats)
	ag.POST("/content/preview", api.previewContent)

	cg := ag.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.POST("/thumbnail", api.uploadThumbnail)
	cg.POST("/generate", api.generateCourse)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)
	cg.POST("/:id/publish", api.publishCourse)
	cg.POST("/:id/unpublish", api.unpublishCourse)
	cg.POST("/:id/media", api.uploadMedia)
}

// Handlers

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.courseSvc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) queryCourses(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	filter.Published = boolQueryParam(ctx, publishedParam)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.courseSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data course.Draft
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Draft")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	outline, err := api.courseSvc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, outline)
}

// retrieveCourse returns a course with its outline, published or not.
func (api *adminApi) retrieveCourse(ctx echo.Context) error {
	outline, err := api.courseSvc.Outline(ctx.Request().Context(), ctx.Param("id"), false /* publishedOnly */)
	if err != nil {
		return errors.Wrap(err, "getting course outline")
	}
	return ctx.JSON(http.StatusOK, outline)
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.courseSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *adminApi) destroyCourse(ctx echo.Context) error {
	if err := api.courseSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) publishCourse(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *adminApi) unpublishCourse(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *adminApi) setPublished(ctx echo.Context, published bool) error {
	crs, err := api.courseSvc.SetPublished(ctx.Request().Context(), ctx.Param("id"), published)
	if err != nil {
		return errors.Wrap(err, "setting course publication")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *adminApi) uploadThumbnail(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errMissingFile
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	url, err := api.courseSvc.UploadThumbnail(ctx.Request().Context(), fh.Filename, f, fileContentType(fh))
	if err != nil {
		return errors.Wrap(err, "uploading thumbnail")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{URL: url})
}

func (api *adminApi) uploadMedia(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errMissingFile
	}

	nm := course.NewMedia{
		CourseID:    ctx.Param("id"),
		LessonID:    ctx.FormValue("lesson_id"),
		MediaType:   ctx.FormValue("media_type"),
		Filename:    fh.Filename,
		ContentType: fileContentType(fh),
		Size:        fh.Size,
	}
	if err = api.validate.Struct(nm); err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	media, err := api.courseSvc.UploadMedia(ctx.Request().Context(), nm, f)
	if err != nil {
		return errors.Wrap(err, "uploading media")
	}
	return ctx.JSON(http.StatusCreated, media)
}

// generateCourse drafts a course with the AI and merges it onto the posted draft.
func (api *adminApi) generateCourse(ctx echo.Context) error {
	var data GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}

	res, err := api.genSvc.Generate(ctx.Request().Context(), data.Prompt)
	if err != nil {
		return errors.Wrap(err, "generating course")
	}
	if data.Draft != nil {
		payload, err := jsoniter.Marshal(res.Course)
		if err != nil {
			return errors.Wrap(err, "encoding generated course")
		}
		res.Course = coursegen.Merge(*data.Draft, payload)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) previewContent(ctx echo.Context) error {
	var data PreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreviewRequest")
	}
	return ctx.JSON(http.StatusOK, PreviewResponse{HTML: api.renderer.RenderText(data.Text)})
}

func fileContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type (
	UploadResponse struct {
		URL string `json:"url"`
	}

	GenerateRequest struct {
		Prompt string        `json:"prompt"`
		Draft  *course.Draft `json:"draft"`
	}

	PreviewRequest struct {
		Text string `json:"text"`
	}

	PreviewResponse struct {
		HTML string `json:"html"`
	}
)
