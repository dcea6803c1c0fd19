package auth

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"student-fee-service/internal/httputil"
)

type contextKey string

const usernameKey contextKey = "username"

const cookieName = "token"

// Middleware rejects requests without a valid token. The token is read from
// the auth cookie first, then from an "Authorization: Bearer" header.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				logger.WarnContext(r.Context(), "no auth token", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid token", "path", r.URL.Path, "error", err)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// GetUsername returns the authenticated admin stored by Middleware.
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}

// SetAuthCookie stores token in an HttpOnly cookie living maxAge seconds.
func SetAuthCookie(w http.ResponseWriter, token string, maxAge int) {
	sameSite := http.SameSiteStrictMode
	env := os.Getenv("ENV")
	if env == "development" || env == "local" || env == "" {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   env == "production" || env == "prod",
		SameSite: sameSite,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

func ClearAuthCookie(w http.ResponseWriter) {
	env := os.Getenv("ENV")
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   env == "production" || env == "prod",
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
