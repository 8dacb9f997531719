package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/contadigital/backend/internal/middleware"
	"github.com/contadigital/backend/internal/models"
	"github.com/contadigital/backend/internal/services"
)

// ErrorEnvelope is the error payload shape shared by all endpoints.
type ErrorEnvelope struct {
	Success   bool        `json:"success"`
	RequestID string      `json:"request_id"`
	Error     ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type WithdrawHandler struct {
	service   *services.WithdrawalService
	balances  *services.BalanceService
	validator *services.ValidationHelper
	logger    zerolog.Logger
}

func NewWithdrawHandler(service *services.WithdrawalService, balances *services.BalanceService, logger zerolog.Logger) *WithdrawHandler {
	return &WithdrawHandler{
		service:   service,
		balances:  balances,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

// CreateWithdrawal creates an immediate or scheduled withdrawal
// @Summary Create a withdrawal
// @Description Withdraw funds from an account immediately or at a scheduled time
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param accountID path string true "Account ID"
// @Param request body models.WithdrawRequest true "Withdrawal request"
// @Success 200 {object} models.WithdrawOutcome
// @Success 202 {object} models.WithdrawOutcome
// @Failure 409 {object} models.WithdrawOutcome
// @Failure 422 {object} handlers.ErrorEnvelope
// @Router /accounts/{accountID}/withdrawals [post]
func (h *WithdrawHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	accountID := chi.URLParam(r, "accountID")

	var req models.WithdrawRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		h.sendError(w, requestID, "invalid_request", "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.sendError(w, requestID, "invalid_request", "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		h.sendError(w, requestID, "invalid_request", "Validation failed", http.StatusUnprocessableEntity, err)
		return
	}

	outcome, err := h.service.CreateWithdrawal(r.Context(), requestID, accountID, &req)
	if err != nil {
		if models.IsValidationError(err) {
			h.sendError(w, requestID, "invalid_request", err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}

		// Log the detail server side, answer with an opaque failure.
		h.logger.Error().Err(err).
			Str("request_id", requestID).
			Str("account_id", accountID).
			Msg("withdraw.create.unhandled_exception")
		h.sendError(w, requestID, "internal_error", "Unexpected error.", http.StatusInternalServerError, nil)
		return
	}

	status := http.StatusOK
	switch outcome.Status {
	case models.OutcomeScheduled:
		status = http.StatusAccepted
	case models.OutcomeFailed:
		status = http.StatusConflict
	}

	h.sendJSON(w, status, map[string]any{
		"success":    outcome.Status != models.OutcomeFailed,
		"request_id": requestID,
		"data":       outcome,
	})
}

// GetWithdrawal returns one withdrawal with its destination
// @Summary Get a withdrawal
// @Tags Withdrawals
// @Produce json
// @Param withdrawalID path string true "Withdrawal ID"
// @Success 200 {object} models.Withdrawal
// @Failure 404 {object} handlers.ErrorEnvelope
// @Router /withdrawals/{withdrawalID} [get]
func (h *WithdrawHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	withdrawalID := chi.URLParam(r, "withdrawalID")

	withdrawal, err := h.service.GetWithdrawal(r.Context(), withdrawalID)
	if err != nil {
		if errors.Is(err, models.ErrWithdrawalNotFound) {
			h.sendError(w, requestID, "not_found", "Withdrawal not found", http.StatusNotFound, nil)
			return
		}

		h.logger.Error().Err(err).
			Str("request_id", requestID).
			Str("withdraw_id", withdrawalID).
			Msg("withdraw.get.unhandled_exception")
		h.sendError(w, requestID, "internal_error", "Unexpected error.", http.StatusInternalServerError, nil)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"request_id": requestID,
		"data":       withdrawal,
	})
}

// AccountBalance returns the current balance of an account
// @Summary Account balance enquiry
// @Tags Accounts
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} models.AccountBalance
// @Failure 404 {object} handlers.ErrorEnvelope
// @Router /accounts/{accountID}/balance [get]
func (h *WithdrawHandler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	accountID := chi.URLParam(r, "accountID")

	balance, err := h.balances.AccountBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			h.sendError(w, requestID, "not_found", "Account not found", http.StatusNotFound, nil)
			return
		}

		h.logger.Error().Err(err).
			Str("request_id", requestID).
			Str("account_id", accountID).
			Msg("balance.enquiry.unhandled_exception")
		h.sendError(w, requestID, "internal_error", "Unexpected error.", http.StatusInternalServerError, nil)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"request_id": requestID,
		"data":       balance,
	})
}

func (h *WithdrawHandler) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *WithdrawHandler) sendError(w http.ResponseWriter, requestID, code, message string, status int, validationErr error) {
	envelope := ErrorEnvelope{
		RequestID: requestID,
		Error:     ErrorDetail{Code: code, Message: message},
	}

	var validationErrors validator.ValidationErrors
	if errors.As(validationErr, &validationErrors) {
		details := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			details[fieldErr.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fieldErr.Tag())
		}
		envelope.Error.Details = details
	}

	h.sendJSON(w, status, envelope)
}
