package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/courselogic/apps/api/echo"
	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/coursegen"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/session"
	"github.com/trezcool/courselogic/core/user"
	aisvc "github.com/trezcool/courselogic/services/ai"
	emailsvc "github.com/trezcool/courselogic/services/email"
	logsvc "github.com/trezcool/courselogic/services/logger"
	storagesvc "github.com/trezcool/courselogic/services/storage"
	"github.com/trezcool/courselogic/storage/database"
	inmemdb "github.com/trezcool/courselogic/storage/database/inmem"
	sqlxrepos "github.com/trezcool/courselogic/storage/database/sqlx"
)

type repositories struct {
	users       user.Repository
	courses     course.Repository
	enrollments enrollment.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, closeDB, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	store, err := storagesvc.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	renderer := content.NewRenderer(conf.Content.SanitizeHTML)
	usrSvc := user.NewService(repos.users, mailSvc, conf)
	crsSvc := course.NewService(repos.courses, store)
	enrSvc := enrollment.NewService(repos.enrollments, crsSvc, renderer)
	genSvc := coursegen.NewService(aisvc.NewGemini(conf, logger), logger)

	sessions := session.NewManager(conf.Server.JWTRefreshExpirationDelta)
	unsubscribe := sessions.Subscribe(func(c session.Change) {
		logger.Debug(fmt.Sprintf("session %s: %s (user %s)", c.Event, c.Session.ID, c.Session.UserID))
	})
	defer unsubscribe()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("sessions", expvar.Func(func() interface{} { return sessions.Len() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	deps := echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Sessions:      sessions,
		MailSvc:       mailSvc,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		EnrollmentSvc: enrSvc,
		CourseGenSvc:  genSvc,
		Renderer:      renderer,
		Validate:      validate,
		Translator:    translator,
	}
	if isLocalStorage(conf) {
		deps.MediaDir = conf.Storage.LocalDir
	}
	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB opens the repositories of the configured database engine.
// The "memory" engine keeps everything in process, for demos & local hacking.
func setUpDB(conf *core.Config) (repositories, func() error, error) {
	if strings.EqualFold(conf.Database.Engine, "memory") {
		db := inmemdb.Open()
		return repositories{
			users:       inmemdb.NewUserRepository(db),
			courses:     inmemdb.NewCourseRepository(db),
			enrollments: inmemdb.NewEnrollmentRepository(db),
		}, func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, nil, err
	}
	return newSQLRepositories(db), db.Close, nil
}

func newSQLRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:       sqlxrepos.NewUserRepository(db),
		courses:     sqlxrepos.NewCourseRepository(db),
		enrollments: sqlxrepos.NewEnrollmentRepository(db),
	}
}

func isLocalStorage(conf *core.Config) bool {
	driver := strings.ToLower(conf.Storage.Driver)
	return driver == "" || driver == "local"
}
