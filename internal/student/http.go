package student

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"student-fee-service/internal/export"
	"student-fee-service/internal/httputil"
	"student-fee-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: NewValidator(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/students", func(r chi.Router) {
		r.Post("/", h.CreateStudent)
		r.Get("/", h.ListStudents)
		r.Get("/export/csv", h.ExportStudents)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Delete("/{id}", h.DeleteStudent)
		r.Get("/{id}/fee-history", h.FeeHistory)
		r.Post("/{id}/fee", h.RecordFee)
	})
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "name", req.Name, "class", req.Class)
	st, err := h.service.CreateStudent(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentCreated(r.Context())

	httputil.RespondWithData(w, http.StatusCreated, st)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	filter := ParseListFilter(r.URL.Query())

	h.logger.InfoContext(r.Context(), "listing students",
		"class", filter.Class, "fee_status", filter.FeeStatus, "sort_by", filter.SortBy)
	students, err := h.service.ListStudents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentsListViewed(r.Context())

	httputil.RespondWithData(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentID(w, r)
	if !ok {
		return
	}

	st, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, st)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentID(w, r)
	if !ok {
		return
	}

	var req UpdateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "student_id", id)
	st, err := h.service.UpdateStudent(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, st)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentID(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "student_id", id)
	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentDeleted(r.Context())

	httputil.RespondWithMessage(w, http.StatusOK, "Student and associated fee records deleted successfully")
}

func (h *Handler) RecordFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentID(w, r)
	if !ok {
		return
	}

	var req FeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	operation := "create"
	if req.FeeID != "" {
		operation = "update"
	}

	h.logger.InfoContext(r.Context(), "recording fee",
		"student_id", id, "operation", operation, "month", req.Month, "year", req.Year, "status", req.FeeStatus)
	record, err := h.service.RecordFee(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordFeeRecordWritten(r.Context(), operation, string(record.Status))

	httputil.RespondWithData(w, http.StatusOK, record)
}

func (h *Handler) FeeHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentID(w, r)
	if !ok {
		return
	}

	history, err := h.service.FeeHistory(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, history)
}

func (h *Handler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	if !export.ValidFormat(format) {
		httputil.RespondWithError(w, http.StatusBadRequest, "format must be csv, json or xlsx")
		return
	}

	filter := ParseExportFilter(r.URL.Query())

	h.logger.InfoContext(r.Context(), "exporting students", "format", format, "class", filter.Class, "month", filter.Month, "year", filter.Year)
	rows, err := h.service.ExportRows(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if format == export.FormatJSON {
		h.metrics.RecordExport(r.Context(), format)
		httputil.RespondWithData(w, http.StatusOK, rows)
		return
	}

	var buf bytes.Buffer
	if format == export.FormatXLSX {
		err = export.WriteXLSX(&buf, rows)
	} else {
		err = export.WriteCSV(&buf, rows)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordExport(r.Context(), format)

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) studentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, ErrStudentNotFound), errors.Is(err, ErrFeeRecordNotFound):
		h.logger.InfoContext(ctx, "not found", "error", err)
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		h.logger.InfoContext(ctx, "invalid input", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		h.logger.WarnContext(ctx, "fee record ownership mismatch", "error", err)
		httputil.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrFeeRecordExists):
		h.logger.InfoContext(ctx, "duplicate fee record", "error", err)
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(ctx, "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
