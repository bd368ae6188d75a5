package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/logbook/internal/app"
	"github.com/shrimpsizemoose/logbook/internal/metrics"
	"github.com/shrimpsizemoose/logbook/internal/models"
)

type ctxKey struct{}

// UserFrom returns the signed in user placed on the context by Authenticated.
func UserFrom(ctx context.Context) models.User {
	u, _ := ctx.Value(ctxKey{}).(models.User)
	return u
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records request duration labelled by route pattern.
func Instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			duration := time.Since(start).Seconds()
			metrics.APIRequestDuration.WithLabelValues(
				pattern,
				r.Method,
				strconv.Itoa(rec.status),
			).Observe(duration)
		}()
		next.ServeHTTP(rec, r)
	})
}

// RequireHeaders rejects requests missing the configured client headers.
func RequireHeaders(service *app.Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !service.ValidateHeaders(r.Header) {
			writeError(w, http.StatusForbidden, "these are not the droids you are looking for")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticated resolves the bearer token to a profile. When roles are given the
// profile must have one of them.
func Authenticated(service *app.Service, next http.HandlerFunc, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := service.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, _, err := service.Authenticate(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}

		if len(roles) > 0 && !hasRole(user, roles) {
			logger.Debug.Printf("User %s with role %s denied %s", user.Profile().ID, user.Role(), r.URL.Path)
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func hasRole(u models.User, roles []models.Role) bool {
	for _, role := range roles {
		if u.Role() == role {
			return true
		}
	}
	return false
}
