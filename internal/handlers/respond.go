package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/accounts"
	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/auth"
	"github.com/shrimpsizemoose/logbook/internal/logbook"
	"github.com/shrimpsizemoose/logbook/internal/supervision"
)

const genericError = "An error occurred."

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decode(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func validationMessage(errs validator.ValidationErrors) string {
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field())
	}
	return "Invalid value for: " + strings.Join(fields, ", ")
}

// statusOf maps domain errors to a status code and the message shown to the client.
func statusOf(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, validationMessage(verrs)
	case errors.Is(err, auth.ErrPasswordRequired),
		errors.Is(err, auth.ErrSignupPasswordRequired),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, accounts.ErrRoleImmutable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, app.ErrProfileNotFound):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, app.ErrAdminSignup),
		errors.Is(err, supervision.ErrNotSupervisor):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, logbook.ErrEntryNotFound),
		errors.Is(err, accounts.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, logbook.ErrEntryLocked),
		errors.Is(err, logbook.ErrEntryNotSubmitted),
		errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, genericError
	}
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug.Printf("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, message)
}
