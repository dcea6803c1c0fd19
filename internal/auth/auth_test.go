package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"student-fee-service/internal/auth"
	"student-fee-service/internal/config"
	"student-fee-service/internal/httputil"
	"student-fee-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	return auth.NewService(config.AuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret-key-for-testing",
		TokenTTLMinutes:   15,
	})
}

func setupRouter(svc *auth.Service) *chi.Mux {
	log := logger.Discard()
	router := chi.NewRouter()
	auth.NewHandler(svc, log).RegisterRoutes(router)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(svc, log))
		r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
			username, _ := auth.GetUsername(r.Context())
			httputil.RespondWithData(w, http.StatusOK, username)
		})
	})
	return router
}

func TestTokens(t *testing.T) {
	svc := newService(t)

	t.Run("RoundTrip", func(t *testing.T) {
		token, expiresAt, err := svc.GenerateToken("admin")
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := auth.NewService(config.AuthConfig{JWTSecret: "another-secret"})
		token, _, err := other.GenerateToken("admin")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		claims := auth.Claims{
			Username: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "student-fee-service",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-for-testing"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestLoginFlow(t *testing.T) {
	svc := newService(t)
	router := setupRouter(svc)

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("WrongPassword", func(t *testing.T) {
		w := login(`{"username":"admin","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("WrongUsername", func(t *testing.T) {
		w := login(`{"username":"root","password":"s3cret"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MissingFields", func(t *testing.T) {
		w := login(`{"username":"admin"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ProtectedRouteWithoutToken", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"unauthorized"}`, w.Body.String())
	})

	t.Run("CookieGrantsAccess", func(t *testing.T) {
		w := login(`{"username":"admin","password":"s3cret"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var cookie *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == "token" {
				cookie = c
			}
		}
		require.NotNil(t, cookie, "token cookie should be set")
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, 900, cookie.MaxAge)

		var body struct {
			Data auth.LoginResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, cookie.Value, body.Data.Token)

		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.AddCookie(cookie)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":"admin"}`, w.Body.String())
	})

	t.Run("BearerHeaderGrantsAccess", func(t *testing.T) {
		token, _, err := svc.GenerateToken("admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Logout", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "token", cookies[0].Name)
		assert.Less(t, cookies[0].MaxAge, 0)
	})
}
