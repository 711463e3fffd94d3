package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionExpired     = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errAccountSuspended   = echo.NewHTTPError(http.StatusForbidden, user.ErrSuspended.Error())
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errMissingFile        = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	errUploadNameConflict = echo.NewHTTPError(http.StatusConflict, core.ErrObjectExists.Error())

	// domain errors with a fixed HTTP meaning
	domainErrors = []struct {
		err  error
		herr *echo.HTTPError
	}{
		{user.ErrNotFound, echo.NewHTTPError(http.StatusNotFound, user.ErrNotFound.Error())},
		{user.ErrInvalidCredentials, echo.NewHTTPError(http.StatusBadRequest, user.ErrInvalidCredentials.Error())},
		{user.ErrSuspended, errAccountSuspended},
		{course.ErrNotFound, echo.NewHTTPError(http.StatusNotFound, course.ErrNotFound.Error())},
		{course.ErrLessonNotFound, echo.NewHTTPError(http.StatusNotFound, course.ErrLessonNotFound.Error())},
		{enrollment.ErrNotFound, echo.NewHTTPError(http.StatusNotFound, enrollment.ErrNotFound.Error())},
		{enrollment.ErrNotEnrolled, echo.NewHTTPError(http.StatusForbidden, enrollment.ErrNotEnrolled.Error())},
		{core.ErrObjectExists, errUploadNameConflict},
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if herr, ok := domainHTTPError(cause); ok {
			cause = herr
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func domainHTTPError(err error) (*echo.HTTPError, bool) {
	for _, de := range domainErrors {
		if err == de.err {
			return de.herr, true
		}
	}
	return nil, false
}
