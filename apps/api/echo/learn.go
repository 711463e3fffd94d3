package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core/enrollment"
)

type learnApi struct {
	svc enrollment.Service
}

func registerLearnAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc enrollment.Service) {
	api := learnApi{svc: svc}

	lg := g.Group("/learn", jwt)
	lg.GET("/:id", api.course)
	lg.POST("/lessons/:id/complete", api.completeLesson)
}

// Handlers

// course returns the lessons of a course, rendered, along with the progress of the context user.
func (api *learnApi) course(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	view, err := api.svc.Learn(ctx.Request().Context(), claims.Subject, claims.IsAdmin(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course lessons")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *learnApi) completeLesson(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	res, err := api.svc.MarkLessonComplete(ctx.Request().Context(), claims.Subject, claims.IsAdmin(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}
