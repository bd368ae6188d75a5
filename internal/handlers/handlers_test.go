package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/logbook/internal/accounts"
	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/auth"
	"github.com/shrimpsizemoose/logbook/internal/logbook"
	"github.com/shrimpsizemoose/logbook/internal/models"
	"github.com/shrimpsizemoose/logbook/internal/store/memory"
)

type testEnv struct {
	t       *testing.T
	service *app.Service
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	config := &app.Config{}
	config.Server.Port = ":0"
	config.Auth.JWTSecret = "secret"
	config.Auth.TokenHeader = "Authorization"
	config.Auth.BcryptCost = 4
	config.API.RequiredHeaders = []app.HeaderConfig{{Name: "X-Client", Value: "logbook-web"}}
	config.Bootstrap.AdminEmail = "admin@uni.edu"
	config.Bootstrap.AdminPassword = "root"

	service, err := app.NewServiceWithStore(context.Background(), config, memory.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, service.BootstrapAdmin(context.Background()))
	t.Cleanup(func() { service.Close() })

	return &testEnv{t: t, service: service, router: NewRouter(service)}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Client", "logbook-web")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (e *testEnv) signUp(rec models.UserRecord) (string, models.UserRecord) {
	e.t.Helper()
	res := e.do("POST", "/api/v1/auth/signup", "", map[string]interface{}{
		"firstName":   rec.FirstName,
		"lastName":    rec.LastName,
		"email":       rec.Email,
		"role":        rec.Role,
		"studentId":   rec.StudentID,
		"company":     rec.Company,
		"companyRole": rec.CompanyRole,
		"password":    "pw",
	})
	require.Equal(e.t, http.StatusCreated, res.Code, res.Body.String())

	session := decodeBody[sessionResponse](e.t, res)
	require.NotEmpty(e.t, session.Token)
	return session.Token, session.User
}

func (e *testEnv) signIn(email, password string) string {
	e.t.Helper()
	res := e.do("POST", "/api/v1/auth/signin", "", signInRequest{Email: email, Password: password})
	require.Equal(e.t, http.StatusOK, res.Code, res.Body.String())
	return decodeBody[sessionResponse](e.t, res).Token
}

type listBody[T any] struct {
	Rows []T `json:"rows"`
}

func TestRequiredHeaders(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	token, user := env.signUp(models.UserRecord{
		FirstName: "Ada", LastName: "Obi", Email: "ada@uni.edu", Role: models.RoleStudent, StudentID: "MAT/001",
	})
	assert.Equal(t, models.RoleStudent, user.Role)

	res := env.do("GET", "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	me := decodeBody[models.UserRecord](t, res)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "MAT/001", me.StudentID)

	t.Run("duplicate email", func(t *testing.T) {
		res := env.do("POST", "/api/v1/auth/signup", "", map[string]interface{}{
			"firstName": "Ada", "lastName": "Obi", "email": "ada@uni.edu", "role": "student", "password": "pw",
		})
		assert.Equal(t, http.StatusConflict, res.Code)
		assert.Contains(t, res.Body.String(), auth.ErrEmailInUse.Error())
	})

	t.Run("admin signup refused", func(t *testing.T) {
		res := env.do("POST", "/api/v1/auth/signup", "", map[string]interface{}{
			"firstName": "Eve", "lastName": "Root", "email": "eve@uni.edu", "role": "admin", "password": "pw",
		})
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("invalid profile", func(t *testing.T) {
		res := env.do("POST", "/api/v1/auth/signup", "", map[string]interface{}{
			"firstName": "Bo", "email": "bo@uni.edu", "role": "student", "password": "pw",
		})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.String(), "LastName")
	})

	t.Run("wrong password", func(t *testing.T) {
		res := env.do("POST", "/api/v1/auth/signin", "", signInRequest{Email: "ada@uni.edu", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Contains(t, res.Body.String(), auth.ErrInvalidCredentials.Error())
	})

	t.Run("missing token", func(t *testing.T) {
		res := env.do("GET", "/api/v1/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("sign out", func(t *testing.T) {
		other := env.signIn("ada@uni.edu", "pw")
		res := env.do("POST", "/api/v1/auth/signout", other, nil)
		assert.Equal(t, http.StatusNoContent, res.Code)

		res = env.do("GET", "/api/v1/me", other, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)

		// the first session is untouched
		res = env.do("GET", "/api/v1/me", token, nil)
		assert.Equal(t, http.StatusOK, res.Code)
	})
}

func TestLogbookWorkflow(t *testing.T) {
	env := newTestEnv(t)

	studentToken, student := env.signUp(models.UserRecord{
		FirstName: "Ada", LastName: "Obi", Email: "ada@uni.edu", Role: models.RoleStudent, StudentID: "MAT/001",
	})
	supToken, supervisor := env.signUp(models.UserRecord{
		FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", Role: models.RoleIndustrialSupervisor, Company: "Acme",
	})
	require.Regexp(t, `^IND-`, supervisor.SupervisorCode)

	entry := map[string]interface{}{
		"date": "2024-03-04", "week": 1, "day": "Monday", "tasks": "Set up\nthe rig", "skillsLearned": "Soldering",
	}

	res := env.do("POST", "/api/v1/entries", studentToken, entry)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	created := decodeBody[models.LogbookEntry](t, res)
	assert.Equal(t, models.StatusDraft, created.Status)
	assert.Equal(t, student.ID, created.StudentID)

	// supervisors cannot act on students that have not linked to them
	res = env.do("GET", fmt.Sprintf("/api/v1/students/%s/entries", student.ID), supToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do("POST", "/api/v1/link/industrial", studentToken, linkRequest{Code: strings.ToLower(supervisor.SupervisorCode)})
	require.Equal(t, http.StatusOK, res.Code)
	link := decodeBody[models.LinkResult](t, res)
	assert.True(t, link.Success, link.Message)

	res = env.do("POST", "/api/v1/link/academic", studentToken, linkRequest{Code: supervisor.SupervisorCode})
	require.Equal(t, http.StatusOK, res.Code)
	assert.False(t, decodeBody[models.LinkResult](t, res).Success)

	res = env.do("POST", "/api/v1/entries/submit", studentToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, map[string]int{"submitted": 1}, decodeBody[map[string]int](t, res))

	t.Run("locked entries cannot be edited", func(t *testing.T) {
		edit := map[string]interface{}{
			"id": created.ID, "date": "2024-03-04", "week": 1, "day": "Monday", "tasks": "x", "skillsLearned": "y",
		}
		res := env.do("POST", "/api/v1/entries", studentToken, edit)
		assert.Equal(t, http.StatusConflict, res.Code)
	})

	res = env.do("GET", "/api/v1/supervisor/students", supToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	students := decodeBody[listBody[models.UserRecord]](t, res)
	require.Len(t, students.Rows, 1)
	assert.Equal(t, student.ID, students.Rows[0].ID)

	res = env.do("GET", fmt.Sprintf("/api/v1/students/%s/entries", student.ID), supToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	entries := decodeBody[listBody[models.LogbookEntry]](t, res)
	require.Len(t, entries.Rows, 1)
	assert.Equal(t, models.StatusPendingApproval, entries.Rows[0].Status)

	reviewPath := fmt.Sprintf("/api/v1/students/%s/entries/%s/review", student.ID, created.ID)
	res = env.do("POST", reviewPath, supToken, map[string]string{"status": "Rejected", "feedback": "More detail"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	reviewed := decodeBody[models.LogbookEntry](t, res)
	assert.Equal(t, models.StatusRejected, reviewed.Status)
	assert.Equal(t, "More detail", reviewed.SupervisorFeedback)

	t.Run("students cannot review", func(t *testing.T) {
		res := env.do("POST", reviewPath, studentToken, map[string]string{"status": "Approved"})
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("unknown entry", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/students/%s/entries/nope/review", student.ID)
		res := env.do("POST", path, supToken, map[string]string{"status": "Approved"})
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("invalid review status", func(t *testing.T) {
		res := env.do("POST", reviewPath, supToken, map[string]string{"status": "Draft"})
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("own entries", func(t *testing.T) {
		res := env.do("GET", "/api/v1/entries", studentToken, nil)
		require.Equal(t, http.StatusOK, res.Code)
		own := decodeBody[listBody[models.LogbookEntry]](t, res)
		require.Len(t, own.Rows, 1)
		assert.Equal(t, models.StatusRejected, own.Rows[0].Status)
	})

	t.Run("csv export", func(t *testing.T) {
		res := env.do("GET", "/api/v1/entries/export?format=csv", studentToken, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "text/csv", res.Header().Get("Content-Type"))
		assert.Contains(t, res.Header().Get("Content-Disposition"), "Ada_Obi_logbook.csv")
		assert.Contains(t, res.Body.String(), "Set up the rig")
	})

	t.Run("pdf export", func(t *testing.T) {
		res := env.do("GET", "/api/v1/entries/export", studentToken, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "application/pdf", res.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(res.Body.String(), "%PDF-"))
	})

	t.Run("unknown export format", func(t *testing.T) {
		res := env.do("GET", "/api/v1/entries/export?format=xls", studentToken, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("drafts cannot be reviewed", func(t *testing.T) {
		draft := map[string]interface{}{
			"date": "2024-03-05", "week": 1, "day": "Tuesday", "tasks": "Calibration", "skillsLearned": "Patience",
		}
		res := env.do("POST", "/api/v1/entries", studentToken, draft)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		saved := decodeBody[models.LogbookEntry](t, res)
		require.Equal(t, models.StatusDraft, saved.Status)

		path := fmt.Sprintf("/api/v1/students/%s/entries/%s/review", student.ID, saved.ID)
		res = env.do("POST", path, supToken, map[string]string{"status": "Approved"})
		assert.Equal(t, http.StatusConflict, res.Code)
	})
}

func TestRelinkedSupervisorCannotReview(t *testing.T) {
	env := newTestEnv(t)

	studentToken, student := env.signUp(models.UserRecord{
		FirstName: "Ada", LastName: "Obi", Email: "ada@uni.edu", Role: models.RoleStudent,
	})
	oldToken, previous := env.signUp(models.UserRecord{
		FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", Role: models.RoleIndustrialSupervisor,
	})
	newToken, current := env.signUp(models.UserRecord{
		FirstName: "Musa", LastName: "Bello", Email: "musa@acme.com", Role: models.RoleIndustrialSupervisor,
	})

	entry := map[string]interface{}{
		"date": "2024-03-04", "week": 1, "day": "Monday", "tasks": "Wiring", "skillsLearned": "Crimping",
	}
	res := env.do("POST", "/api/v1/entries", studentToken, entry)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	created := decodeBody[models.LogbookEntry](t, res)

	for _, code := range []string{previous.SupervisorCode, current.SupervisorCode} {
		res = env.do("POST", "/api/v1/link/industrial", studentToken, linkRequest{Code: code})
		require.Equal(t, http.StatusOK, res.Code)
		require.True(t, decodeBody[models.LinkResult](t, res).Success)
	}

	res = env.do("POST", "/api/v1/entries/submit", studentToken, nil)
	require.Equal(t, http.StatusOK, res.Code)

	reviewPath := fmt.Sprintf("/api/v1/students/%s/entries/%s/review", student.ID, created.ID)
	res = env.do("POST", reviewPath, oldToken, map[string]string{"status": "Approved"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do("POST", reviewPath, newToken, map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, models.StatusApproved, decodeBody[models.LogbookEntry](t, res).Status)
}

func TestEvaluationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	studentToken, student := env.signUp(models.UserRecord{
		FirstName: "Ada", LastName: "Obi", Email: "ada@uni.edu", Role: models.RoleStudent,
	})
	acadToken, academic := env.signUp(models.UserRecord{
		FirstName: "Kola", LastName: "Ade", Email: "kola@uni.edu", Role: models.RoleAcademicSupervisor,
	})
	otherToken, _ := env.signUp(models.UserRecord{
		FirstName: "Tunde", LastName: "Ojo", Email: "tunde@uni.edu", Role: models.RoleAcademicSupervisor,
	})

	path := fmt.Sprintf("/api/v1/students/%s/evaluation", student.ID)
	grade := map[string]interface{}{"grade": 78, "comments": "Solid work"}

	res := env.do("PUT", path, acadToken, grade)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do("POST", "/api/v1/link/academic", studentToken, linkRequest{Code: academic.SupervisorCode})
	require.True(t, decodeBody[models.LinkResult](t, res).Success)

	res = env.do("GET", path, studentToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = env.do("PUT", path, acadToken, grade)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	saved := decodeBody[models.Evaluation](t, res)
	assert.Equal(t, academic.ID, saved.AcademicSupervisorID)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, saved.Date)

	res = env.do("GET", path, studentToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 78.0, decodeBody[models.Evaluation](t, res).Grade)

	res = env.do("GET", path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do("PUT", path, acadToken, map[string]interface{}{"grade": 120})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	adminToken := env.signIn("admin@uni.edu", "root")
	res = env.do("GET", path, adminToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.signIn("admin@uni.edu", "root")
	studentToken, _ := env.signUp(models.UserRecord{
		FirstName: "Ada", LastName: "Obi", Email: "ada@uni.edu", Role: models.RoleStudent,
	})

	res := env.do("GET", "/api/v1/admin/users", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do("POST", "/api/v1/admin/users", adminToken, models.UserRecord{
		FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", Role: models.RoleIndustrialSupervisor,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	created := decodeBody[models.UserRecord](t, res)
	assert.Regexp(t, `^IND-J[A-Z]{1,4}[0-9]{1,2}$`, created.SupervisorCode)

	res = env.do("GET", "/api/v1/admin/users?role=industrial-supervisor", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	listed := decodeBody[listBody[models.UserRecord]](t, res)
	require.Len(t, listed.Rows, 1)
	assert.Equal(t, created.ID, listed.Rows[0].ID)

	res = env.do("GET", "/api/v1/admin/users", adminToken, nil)
	assert.Len(t, decodeBody[listBody[models.UserRecord]](t, res).Rows, 3)

	update := created
	update.Company = "Acme"
	update.SupervisorCode = ""
	res = env.do("PUT", "/api/v1/admin/users/"+created.ID, adminToken, update)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	updated := decodeBody[models.UserRecord](t, res)
	assert.Equal(t, "Acme", updated.Company)
	assert.Equal(t, created.SupervisorCode, updated.SupervisorCode)

	update.Role = models.RoleAcademicSupervisor
	res = env.do("PUT", "/api/v1/admin/users/"+created.ID, adminToken, update)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = env.do("PUT", "/api/v1/admin/users/ghost", adminToken, update)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = env.do("DELETE", "/api/v1/admin/users/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = env.do("GET", "/api/v1/admin/users?role=industrial-supervisor", adminToken, nil)
	assert.Empty(t, decodeBody[listBody[models.UserRecord]](t, res).Rows)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{app.ErrProfileNotFound, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", logbook.ErrEntryLocked), http.StatusConflict},
		{logbook.ErrEntryNotSubmitted, http.StatusConflict},
		{accounts.ErrUserNotFound, http.StatusNotFound},
		{accounts.ErrRoleImmutable, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, message := statusOf(tt.err)
			assert.Equal(t, tt.status, status)
			if status == http.StatusInternalServerError {
				assert.Equal(t, genericError, message)
			}
		})
	}
}
