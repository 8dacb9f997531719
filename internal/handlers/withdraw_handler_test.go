package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/contadigital/backend/internal/middleware"
	"github.com/contadigital/backend/internal/models"
	"github.com/contadigital/backend/internal/services"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestRouter(t *testing.T, clock services.Clock) (*chi.Mux, sqlmock.Sqlmock) {
	t.Helper()

	db, dbmock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	service := services.NewWithdrawalService(db, nil, nil, clock, logger)
	balances := services.NewBalanceService(db, nil, logger)
	handler := NewWithdrawHandler(service, balances, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/api/v1/accounts/{accountID}/withdrawals", handler.CreateWithdrawal)
	r.Get("/api/v1/accounts/{accountID}/balance", handler.AccountBalance)
	r.Get("/api/v1/withdrawals/{withdrawalID}", handler.GetWithdrawal)
	return r, dbmock
}

func postWithdrawal(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acc-1/withdrawals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWithdrawHandler_CreateWithdrawal(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)

	t.Run("malformed body", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		rec := postWithdrawal(r, "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("field validation failure", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		rec := postWithdrawal(r, `{"method":"PIX","amount":"10.505","pix":{"type":"email","key":"a@b.com"}}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["success"])
		errBody := resp["error"].(map[string]any)
		assert.Equal(t, "invalid_request", errBody["code"])
		assert.Contains(t, errBody["details"].(map[string]any), "Amount")
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("schedule in the past", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		past := now.Add(-time.Hour).Format(models.ScheduleLayout)
		rec := postWithdrawal(r, `{"method":"PIX","amount":"10.00","pix":{"type":"email","key":"a@b.com"},"schedule":"`+past+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		errBody := resp["error"].(map[string]any)
		assert.Equal(t, "invalid_request", errBody["code"])
		assert.Equal(t, models.ErrScheduleNotFuture.Error(), errBody["message"])
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("scheduled withdrawal answers 202", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		dbmock.ExpectBegin()
		dbmock.ExpectExec("INSERT INTO account_withdrawals").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectExec("INSERT INTO account_withdrawal_pix").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectCommit()

		future := now.Add(24 * time.Hour).Format(models.ScheduleLayout)
		rec := postWithdrawal(r, `{"method":"PIX","amount":"10.00","pix":{"type":"email","key":"a@b.com"},"schedule":"`+future+`"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		data := resp["data"].(map[string]any)
		assert.Equal(t, models.OutcomeScheduled, data["status"])
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("insufficient funds answers 409", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		dbmock.ExpectBegin()
		dbmock.ExpectExec("INSERT INTO account_withdrawals").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectExec("INSERT INTO account_withdrawal_pix").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		dbmock.ExpectExec("UPDATE account_withdrawals SET done = TRUE, error = TRUE").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectCommit()

		rec := postWithdrawal(r, `{"method":"PIX","amount":"200.00","pix":{"type":"email","key":"a@b.com"}}`)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["success"])
		data := resp["data"].(map[string]any)
		assert.Equal(t, models.OutcomeFailed, data["status"])
		assert.Equal(t, models.ReasonInsufficientFunds, data["reason"])
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("request id is echoed", func(t *testing.T) {
		r, _ := newTestRouter(t, fixedClock{now})

		rec := postWithdrawal(r, "{not json")
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})
}

func TestWithdrawHandler_AccountBalance(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)

	t.Run("returns balance", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		dbmock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("800.00"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc-1/balance", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		data := resp["data"].(map[string]any)
		assert.Equal(t, "800.00", data["balance"])
	})

	t.Run("unknown account answers 404", func(t *testing.T) {
		r, dbmock := newTestRouter(t, fixedClock{now})

		dbmock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/missing/balance", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
