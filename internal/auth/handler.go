package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"student-fee-service/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/login", h.Login)
	router.Post("/auth/logout", h.Logout)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	resp, err := h.service.Login(req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.WarnContext(r.Context(), "failed login", "username", req.Username)
			httputil.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "admin logged in", "username", req.Username)

	SetAuthCookie(w, resp.Token, int(h.service.TokenTTL().Seconds()))
	httputil.RespondWithData(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w)
	httputil.RespondWithMessage(w, http.StatusOK, "logged out")
}
