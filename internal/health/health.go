package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"student-fee-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

// Pinger is satisfied by *bun.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHandler(db Pinger, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type Response struct {
	Status string `json:"status"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithData(w, http.StatusOK, Response{Status: "ok"})
}

// Ready reports whether the database answers within two seconds.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Success: false,
			Data:    Response{Status: "unavailable"},
			Message: "database unavailable",
		})
		return
	}
	httputil.RespondWithData(w, http.StatusOK, Response{Status: "ready"})
}
