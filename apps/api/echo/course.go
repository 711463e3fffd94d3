package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/enrollment"
)

type courseApi struct {
	svc    course.Service
	enrSvc enrollment.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc course.Service, enrSvc enrollment.Service) {
	api := courseApi{svc: svc, enrSvc: enrSvc}

	cg := g.Group("/courses")
	cg.GET("", api.catalog)
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/enroll", api.enroll, jwt)

	g.GET("/dashboard", api.dashboard, jwt)
}

// CourseDetail is a published course with its outline. The description is also given as HTML.
type CourseDetail struct {
	course.Outline
	DescriptionHTML string `json:"description_html"`
}

// Handlers

func (api *courseApi) catalog(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	courses, err := api.svc.Catalog(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying catalog")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	outline, err := api.svc.Outline(ctx.Request().Context(), ctx.Param("id"), true /* publishedOnly */)
	if err != nil {
		return errors.Wrap(err, "getting course outline")
	}
	desc, err := content.RenderMarkdown(outline.Course.Description)
	if err != nil {
		return errors.Wrap(err, "rendering description")
	}
	return ctx.JSON(http.StatusOK, CourseDetail{Outline: outline, DescriptionHTML: desc})
}

func (api *courseApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	enr, err := api.enrSvc.Enroll(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	dash, err := api.enrSvc.Dashboard(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
