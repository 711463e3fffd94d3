package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core/session"
	"github.com/trezcool/courselogic/core/user"
)

type userApi struct {
	svc      user.Service
	sessions *session.Manager
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.Service, sessions *session.Manager) {
	api := userApi{svc: svc, sessions: sessions}

	ug := g.Group("/users", jwt, adminMiddleware())
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)

	// detail endpoints: an admin never acts on their own account
	dg := ug.Group("/:id", notSelfMiddleware(svc))
	dg.POST("/suspend", api.suspend)
	dg.POST("/unsuspend", api.unsuspend)
	dg.DELETE("", api.terminate)
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// suspend blocks a user and signs them out everywhere.
func (api *userApi) suspend(ctx echo.Context) error {
	usr, err := api.svc.Suspend(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "suspending user")
	}
	api.sessions.CloseUser(usr.ID)
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) unsuspend(ctx echo.Context) error {
	usr, err := api.svc.Unsuspend(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unsuspending user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) terminate(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.svc.Terminate(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "terminating user")
	}
	api.sessions.CloseUser(id)
	return ctx.NoContent(http.StatusNoContent)
}

func notSelfMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctx.Param("id") == ctxUsr.ID {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
