package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core/course"
	"github.com/trezcool/courselogic/core/enrollment"
	"github.com/trezcool/courselogic/core/user"
	testutil "github.com/trezcool/courselogic/tests"
)

func Test_courseApi_catalog(t *testing.T) {
	env := setup(t)
	now := time.Now()
	goCrs := testutil.CreateCourse(t, env.crsRepo, "Go 101", true, 1, 2, now.Add(-time.Hour))
	pyCrs := testutil.CreateCourse(t, env.crsRepo, "Python 101", true, 1, 1, now)
	testutil.CreateCourse(t, env.crsRepo, "Draft", false, 1, 1, now)

	tests := []httpTest{
		{name: "published only", path: "/v1/courses", wantCode: http.StatusOK, wantData: marshalList(t, pyCrs.Course, goCrs.Course)},
		{name: "search", path: "/v1/courses?search=python", wantCode: http.StatusOK, wantData: marshalList(t, pyCrs.Course)},
		{name: "level", path: "/v1/courses?level=" + course.LevelAdvanced, wantCode: http.StatusOK, wantData: marshalList(t)},
		{name: "draft search", path: "/v1/courses?search=draft", wantCode: http.StatusOK, wantData: marshalList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Go 101", true, 2, 2)
	draft := testutil.CreateCourse(t, env.crsRepo, "Draft", false, 1, 1)

	errNotFound := marshalObj(t, httpErr{Error: "course not found"})
	tests := []httpTest{
		{name: "draft", path: "/v1/courses/" + draft.Course.ID, wantCode: http.StatusNotFound, wantData: errNotFound},
		{name: "unknown", path: "/v1/courses/nope", wantCode: http.StatusNotFound, wantData: errNotFound},
		{name: "published", path: "/v1/courses/" + crs.Course.ID, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			rec := env.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var got CourseDetail
			decodeBody(t, rec, &got)
			assert.Equal(t, crs.Course.ID, got.Course.ID)
			assert.Equal(t, "<p>About Go 101</p>\n", got.DescriptionHTML)
			require.Len(t, got.Modules, 2)
			assert.Equal(t, "Module 1", got.Modules[0].Title)
			require.Len(t, got.Modules[1].Lessons, 2)
			assert.Equal(t, "Lesson 2.2", got.Modules[1].Lessons[1].Content.String())
		})
	}
}

func Test_courseApi_enroll(t *testing.T) {
	env := setup(t)
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false)
	token := env.token(t, student)
	crs := testutil.CreateCourse(t, env.crsRepo, "Go 101", true, 1, 2)
	draft := testutil.CreateCourse(t, env.crsRepo, "Draft", false, 1, 1)

	tests := []httpTest{
		{name: "no token", path: "/v1/courses/" + crs.Course.ID + "/enroll", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name:     "unpublished",
			path:     "/v1/courses/" + draft.Course.ID + "/enroll",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{name: "enrolled", path: "/v1/courses/" + crs.Course.ID + "/enroll", token: token, wantCode: http.StatusCreated},
		{name: "enrolled again", path: "/v1/courses/" + crs.Course.ID + "/enroll", token: token, wantCode: http.StatusCreated},
	}
	var ids []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			rec := env.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusCreated {
				return
			}

			var enr enrollment.Enrollment
			decodeBody(t, rec, &enr)
			assert.Equal(t, student.ID, enr.UserID)
			assert.Equal(t, crs.Course.ID, enr.CourseID)
			ids = append(ids, enr.ID)
		})
	}

	// enrolling twice keeps the first enrollment
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func Test_learnApi(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, false)
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false)
	outsider := testutil.CreateUser(t, env.usrRepo, "Outsider", "outsider@test.cd", "", user.RoleStudent, false)
	crs := testutil.CreateCourse(t, env.crsRepo, "Go 101", true, 1, 2)
	lessons := crs.Modules[0].Lessons

	studentToken := env.token(t, student)
	rec := env.serve(httpTest{method: http.MethodPost, path: "/v1/courses/" + crs.Course.ID + "/enroll", token: studentToken})
	require.Equal(t, http.StatusCreated, rec.Code)

	errNotEnrolled := marshalObj(t, httpErr{Error: "you are not enrolled in this course"})

	t.Run("course", func(t *testing.T) {
		tests := []httpTest{
			{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
			{name: "not enrolled", token: env.token(t, outsider), wantCode: http.StatusForbidden, wantData: errNotEnrolled},
			{name: "admin", token: env.token(t, admin), wantCode: http.StatusOK},
			{name: "enrolled", token: studentToken, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.path = http.MethodGet, "/v1/learn/"+crs.Course.ID
				rec := env.serve(tt)
				checkCodeAndData(t, tt, rec)
				if tt.wantCode != http.StatusOK {
					return
				}

				var view enrollment.LearnView
				decodeBody(t, rec, &view)
				assert.Equal(t, crs.Course.ID, view.Course.ID)
				require.Len(t, view.Lessons, 2)
				assert.Equal(t, "Lesson 1.1", view.Lessons[0].HTML)
				assert.Equal(t, 0, view.Completion)
			})
		}
	})

	t.Run("completeLesson", func(t *testing.T) {
		tests := []struct {
			httpTest
			wantCompletion int
		}{
			{httpTest: httpTest{name: "unknown lesson", path: "nope", token: studentToken, wantCode: http.StatusNotFound,
				wantData: marshalObj(t, httpErr{Error: "lesson not found"})}},
			{httpTest: httpTest{name: "not enrolled", path: lessons[0].ID, token: env.token(t, outsider), wantCode: http.StatusForbidden,
				wantData: errNotEnrolled}},
			{httpTest: httpTest{name: "first lesson", path: lessons[0].ID, token: studentToken, wantCode: http.StatusOK}, wantCompletion: 50},
			{httpTest: httpTest{name: "same lesson", path: lessons[0].ID, token: studentToken, wantCode: http.StatusOK}, wantCompletion: 50},
			{httpTest: httpTest{name: "last lesson", path: lessons[1].ID, token: studentToken, wantCode: http.StatusOK}, wantCompletion: 100},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.method, tt.path = http.MethodPost, "/v1/learn/lessons/"+tt.path+"/complete"
				rec := env.serve(tt.httpTest)
				checkCodeAndData(t, tt.httpTest, rec)
				if tt.wantCode != http.StatusOK {
					return
				}

				var res enrollment.CompletionResult
				decodeBody(t, rec, &res)
				assert.True(t, res.Progress.Completed)
				assert.Equal(t, tt.wantCompletion, res.Completion)
			})
		}
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/dashboard", token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code)

		var dash enrollment.Dashboard
		decodeBody(t, rec, &dash)
		require.Len(t, dash.Enrollments, 1)
		assert.Equal(t, crs.Course.ID, dash.Enrollments[0].Course.ID)
		assert.Equal(t, 100.0, dash.Enrollments[0].Progress)
		assert.Equal(t, 1, dash.Stats.TotalCourses)
		assert.Equal(t, 1, dash.Stats.CompletedCourses)
		assert.Equal(t, 1, dash.Stats.Certificates)
	})

	t.Run("empty dashboard", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/dashboard", token: env.token(t, outsider)})
		require.Equal(t, http.StatusOK, rec.Code)

		var dash enrollment.Dashboard
		decodeBody(t, rec, &dash)
		assert.Empty(t, dash.Enrollments)
	})
}
