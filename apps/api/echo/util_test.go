package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/content"
	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/coursegen"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/session"
	"github.com/trezcool/courselogic/core/user"
	"github.com/trezcool/courselogic/services/email"
	"github.com/trezcool/courselogic/services/logger"
	"github.com/trezcool/courselogic/services/storage"
	"github.com/trezcool/courselogic/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// generatorFunc adapts a function to coursegen.Generator.
type generatorFunc func(ctx context.Context, system, prompt string, schema []byte) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, system, prompt string, schema []byte) ([]byte, error) {
	return f(ctx, system, prompt, schema)
}

type testEnv struct {
	app      *server
	conf     *core.Config
	sessions *session.Manager
	usrRepo  user.Repository
	crsRepo  course.Repository
	enrRepo  enrollment.Repository
	gen      coursegen.Generator
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Storage.PublicBaseURL = "http://localhost:8000/media"

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	store, err := storagesvc.NewLocal(t.TempDir(), conf.Storage.PublicBaseURL)
	require.NoError(t, err)

	db := inmemdb.Open()
	env := &testEnv{
		conf:     conf,
		sessions: session.NewManager(time.Hour),
		usrRepo:  inmemdb.NewUserRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		enrRepo:  inmemdb.NewEnrollmentRepository(db),
	}
	// generation fails unless a test sets env.gen
	gen := generatorFunc(func(ctx context.Context, system, prompt string, schema []byte) ([]byte, error) {
		if env.gen == nil {
			return nil, &aiUnavailable{}
		}
		return env.gen.Generate(ctx, system, prompt, schema)
	})

	core.ParseEmailTemplates(conf, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ResetSentMessages()
	renderer := content.NewRenderer(false)
	crsSvc := course.NewService(env.crsRepo, store)

	env.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Sessions:       env.sessions,
		MailSvc:        mailSvc,
		UserSvc:        user.NewService(env.usrRepo, mailSvc, conf),
		CourseSvc:      crsSvc,
		EnrollmentSvc:  enrollment.NewService(env.enrRepo, crsSvc, renderer),
		CourseGenSvc:   coursegen.NewService(gen, logger),
		Renderer:       renderer,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	}).(*server)
	return env
}

type aiUnavailable struct{}

func (aiUnavailable) Error() string { return "503 unavailable" }

// token signs usr in and returns the token of the new session.
func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.app.auth.signIn(usr)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (env *testEnv) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData compares the response body only when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func refreshUser(t *testing.T, repo user.Repository, id string) user.User {
	t.Helper()
	usr, err := repo.GetUser(context.Background(), user.GetFilter{ID: id})
	require.NoError(t, err)
	return usr
}
