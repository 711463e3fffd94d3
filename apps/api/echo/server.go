package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/coursegen"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/session"
	"github.com/trezcool/courselogic/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Sessions       *session.Manager
		MailSvc        core.EmailService
		UserSvc        user.Service
		CourseSvc      course.Service
		EnrollmentSvc  enrollment.Service
		CourseGenSvc   coursegen.Service
		Renderer       *content.Renderer
		Validate       *validator.Validate
		Translator     ut.Translator
		MediaDir       string // served under /media when set
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Renderer == nil {
		deps.Renderer = content.NewRenderer(deps.Conf.Content.SanitizeHTML)
	}

	s := &server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Sessions, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.deps.MediaDir != "" {
		s.app.Static("/media", s.deps.MediaDir)
	}

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()

	registerAuthAPI(v1, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.Sessions)
	registerCourseAPI(v1, jwt, s.deps.CourseSvc, s.deps.EnrollmentSvc)
	registerLearnAPI(v1, jwt, s.deps.EnrollmentSvc)
	registerAdminAPI(v1, jwt, adminApi{
		courseSvc: s.deps.CourseSvc,
		genSvc:    s.deps.CourseGenSvc,
		renderer:  s.deps.Renderer,
		validate:  s.deps.Validate,
	})
	registerContactAPI(v1, conf, s.deps.MailSvc, s.deps.Validate)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// signalShutdown asks main to shut the server down gracefully.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
