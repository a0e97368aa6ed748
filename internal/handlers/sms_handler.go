package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pesatrack/backend/internal/logger"
	"github.com/pesatrack/backend/internal/mpesa"
	"github.com/pesatrack/backend/internal/services"
)

type SMSHandler struct {
	service      *services.ImportService
	validator    *services.ValidationHelper
	maxBatchSize int
}

func NewSMSHandler(service *services.ImportService, maxBatchSize int) *SMSHandler {
	return &SMSHandler{
		service:      service,
		validator:    services.NewValidationHelper(),
		maxBatchSize: maxBatchSize,
	}
}

type parseRequest struct {
	Message      string     `json:"message" validate:"required,max=2000"`
	FallbackDate *time.Time `json:"fallback_date,omitempty"`
}

type importRequest struct {
	Messages     []string   `json:"messages" validate:"required,min=1,dive,max=2000"`
	FallbackDate *time.Time `json:"fallback_date,omitempty"`
}

// Parse parses a single message without saving it
// @Summary Parse M-Pesa SMS
// @Description Extract a structured transaction from one M-Pesa message
// @Tags SMS
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{message=string,fallback_date=string} true "SMS parse request"
// @Success 200 {object} models.ParsedTransaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /sms/parse [post]
func (h *SMSHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	var req parseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	parsed, err := h.service.ParseMessage(req.Message, req.FallbackDate)
	if err != nil {
		var parseErr *mpesa.ParseError
		if errors.As(err, &parseErr) {
			services.SendErrorResponse(w, parseErr.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, parsed)
}

// Import imports a batch of messages for the authenticated user
// @Summary Import M-Pesa SMS batch
// @Description Parse, deduplicate, categorize and save a batch of messages
// @Tags SMS
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{messages=[]string,fallback_date=string} true "SMS import request"
// @Success 200 {object} models.ImportSession
// @Failure 400 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /sms/import [post]
func (h *SMSHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if h.maxBatchSize > 0 && len(req.Messages) > h.maxBatchSize {
		services.SendErrorResponse(w, fmt.Sprintf("Batch size cannot exceed %d messages", h.maxBatchSize), http.StatusBadRequest, nil)
		return
	}

	if err := h.service.AllowImport(r.Context(), userID); err != nil {
		services.SendErrorResponse(w, "Too many import requests, try again later", http.StatusTooManyRequests, nil)
		return
	}

	session, err := h.service.ImportBatch(r.Context(), userID, req.Messages, req.FallbackDate)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("user_id", userID).Msg("sms import aborted")
		var cfgErr *services.ConfigurationError
		if errors.As(err, &cfgErr) {
			services.SendErrorResponse(w, "Category configuration is invalid", http.StatusInternalServerError, nil)
			return
		}
		services.SendErrorResponse(w, "Import failed", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GetSession returns a finished import session
// @Summary Get import session
// @Tags SMS
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.ImportSession
// @Failure 404 {object} services.ErrorResponse
// @Router /sms/sessions/{sessionId} [get]
func (h *SMSHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), userID, chi.URLParam(r, "sessionId"))
	if errors.Is(err, services.ErrSessionNotFound) {
		services.SendErrorResponse(w, "Import session not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to load import session")
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// DuplicateStats reports duplicate detection over the last days (default 30)
// @Summary Duplicate detection statistics
// @Tags SMS
// @Produce json
// @Security BearerAuth
// @Param days query int false "Period in days"
// @Success 200 {object} models.DuplicateStats
// @Failure 400 {object} services.ErrorResponse
// @Router /sms/duplicates/stats [get]
func (h *SMSHandler) DuplicateStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			services.SendErrorResponse(w, "days must be between 1 and 365", http.StatusBadRequest, nil)
			return
		}
		days = n
	}

	stats, err := h.service.DuplicateStats(r.Context(), userID, days)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to compute duplicate stats")
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period_days": days,
		"stats":       stats,
	})
}
