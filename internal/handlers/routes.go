package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/models"
)

// NewRouter registers every API route. All /api routes require the configured
// client headers.
func NewRouter(service *app.Service) http.Handler {
	authHandler := NewAuthHandler(service)
	entryHandler := NewEntryHandler(service)
	supervisionHandler := NewSupervisionHandler(service)
	adminHandler := NewAdminHandler(service)

	mux := http.NewServeMux()
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, Instrument(pattern, RequireHeaders(service, h)))
	}
	signedIn := func(h http.HandlerFunc, roles ...models.Role) http.Handler {
		return Authenticated(service, h, roles...)
	}

	student := models.RoleStudent
	industrial := models.RoleIndustrialSupervisor
	academic := models.RoleAcademicSupervisor
	admin := models.RoleAdmin

	route("POST /api/v1/auth/signup", http.HandlerFunc(authHandler.HandleSignUp))
	route("POST /api/v1/auth/signin", http.HandlerFunc(authHandler.HandleSignIn))
	route("POST /api/v1/auth/signout", http.HandlerFunc(authHandler.HandleSignOut))
	route("GET /api/v1/me", signedIn(authHandler.HandleMe))

	route("GET /api/v1/entries", signedIn(entryHandler.HandleList, student))
	route("POST /api/v1/entries", signedIn(entryHandler.HandleSave, student))
	route("POST /api/v1/entries/submit", signedIn(entryHandler.HandleSubmit, student))
	route("GET /api/v1/entries/export", signedIn(entryHandler.HandleExport, student))

	route("POST /api/v1/link/industrial", signedIn(supervisionHandler.HandleLinkIndustrial, student))
	route("POST /api/v1/link/academic", signedIn(supervisionHandler.HandleLinkAcademic, student))

	route("GET /api/v1/supervisor/students", signedIn(supervisionHandler.HandleStudents, industrial, academic))
	route("GET /api/v1/students/{id}/entries", signedIn(supervisionHandler.HandleStudentEntries))
	route("POST /api/v1/students/{id}/entries/{entryId}/review", signedIn(supervisionHandler.HandleReview, industrial))
	route("GET /api/v1/students/{id}/evaluation", signedIn(supervisionHandler.HandleGetEvaluation))
	route("PUT /api/v1/students/{id}/evaluation", signedIn(supervisionHandler.HandlePutEvaluation, academic))

	route("GET /api/v1/admin/users", signedIn(adminHandler.HandleList, admin))
	route("POST /api/v1/admin/users", signedIn(adminHandler.HandleCreate, admin))
	route("PUT /api/v1/admin/users/{id}", signedIn(adminHandler.HandleUpdate, admin))
	route("DELETE /api/v1/admin/users/{id}", signedIn(adminHandler.HandleDelete, admin))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
