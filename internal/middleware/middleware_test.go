package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"student-fee-service/internal/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(okHandler)

	t.Run("AllowedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Disposition", w.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("OtherOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/students", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://anything.example")
		w := httptest.NewRecorder()
		CORS([]string{"*"})(okHandler).ServeHTTP(w, req)

		assert.Equal(t, "http://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	w := httptest.NewRecorder()
	RequestLogger(logger)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/students/1", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "DELETE", entry["method"])
	assert.Equal(t, "/api/students/1", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
}

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, logger.Options{Format: logger.FormatJSON})

	handler := chimw.RequestID(RequestLogger(log)(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
}
