package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/courselogic/core/user"
	testutil "github.com/trezcool/courselogic/tests"
)

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	now := time.Now()
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, false, now.Add(-2*time.Minute))
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false, now.Add(-time.Minute))
	other := testutil.CreateUser(t, env.usrRepo, "Other", "other@test.cd", "", user.RoleStudent, true, now)
	adminToken := env.token(t, admin)

	tests := []httpTest{
		{name: "no token", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name:     "student",
			path:     "/v1/users",
			token:    env.token(t, student),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "newest first", path: "/v1/users", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, other, student, admin)},
		{name: "ordering", path: "/v1/users?ordering=email", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, admin, other, student)},
		{name: "bad ordering", path: "/v1/users?ordering=password_hash", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, other, student, admin)},
		{name: "search", path: "/v1/users?search=STUD", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, student)},
		{name: "role", path: "/v1/users?role=admin", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, admin)},
		{name: "status", path: "/v1/users?status=suspended", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, other)},
		{name: "no match", path: "/v1/users?search=nobody", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}
}

func Test_userApi_queryRoles(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, false)

	rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/users/roles", token: env.token(t, admin)})
	require.Equal(t, http.StatusOK, rec.Code)

	var roles []user.Role
	decodeBody(t, rec, &roles)
	assert.Len(t, roles, 2)
}

func Test_userApi_suspend(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, false)
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false)
	adminToken := env.token(t, admin)
	studentToken := env.token(t, student)

	tests := []httpTest{
		{
			name:     "self",
			path:     "/v1/users/" + admin.ID + "/suspend",
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "unknown user",
			path:     "/v1/users/nope/suspend",
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "user not found"}),
		},
		{name: "suspended", path: "/v1/users/" + student.ID + "/suspend", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.token = http.MethodPost, adminToken
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}

	suspended := refreshUser(t, env.usrRepo, student.ID)
	assert.True(t, suspended.IsSuspended())

	// the student was signed out everywhere
	tt := httpTest{
		method:   http.MethodGet,
		path:     "/v1/auth/me",
		token:    studentToken,
		wantCode: http.StatusUnauthorized,
		wantData: marshalObj(t, httpErr{Error: "session expired"}),
	}
	checkCodeAndData(t, tt, env.serve(tt))

	rec := env.serve(httpTest{method: http.MethodPost, path: "/v1/users/" + student.ID + "/unsuspend", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	decodeBody(t, rec, &got)
	assert.Equal(t, user.StatusActive, got.Status)
}

func Test_userApi_terminate(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, false)
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "", user.RoleStudent, false)
	adminToken := env.token(t, admin)
	studentToken := env.token(t, student)

	tests := []httpTest{
		{name: "self", path: "/v1/users/" + admin.ID, wantCode: http.StatusForbidden},
		{name: "deleted", path: "/v1/users/" + student.ID, wantCode: http.StatusNoContent},
		{
			name:     "already deleted",
			path:     "/v1/users/" + student.ID,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.token = http.MethodDelete, adminToken
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}

	rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/auth/me", token: studentToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, env.sessions.Len())
}
