package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"techtrack/internal/model"
	"techtrack/internal/security"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

type contextKey string

const (
	currentUserContextKey contextKey = "current_user"
	requestLogContextKey  contextKey = "request_log"
)

// AuthMiddleware guards routes with a bearer token. The user is reloaded on
// every request so deactivation and deletion take effect immediately.
type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err == nil {
			noteUser(r.Context(), user.ID)
		}
		if errors.Is(err, security.ErrInvalidToken) {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "authenticate request", "error", err)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
			return
		}

		if !user.IsActive {
			writeErrorJSON(w, http.StatusForbidden, "INACTIVE_USER", "Inactive user")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser must run after RequireAuth.
func (m *AuthMiddleware) RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		if !user.IsSuperuser {
			writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "The user doesn't have enough privileges")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(currentUserContextKey).(model.User)
	return user, ok
}

// WithUser stores user the way RequireAuth does; handler tests use it to
// skip token plumbing.
func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, currentUserContextKey, user)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", detail)
}
