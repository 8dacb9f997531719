package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contadigital/backend/internal/models"
)

const (
	insertWithdrawalSQL = `
		INSERT INTO account_withdrawals
			(id, account_id, method, amount, scheduled, scheduled_for,
			 done, error, error_reason, processing, processing_started_at, processed_at,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, NULL, FALSE, NULL, NULL, $7, $7)`

	insertDestinationSQL = `
		INSERT INTO account_withdrawal_pix (account_withdrawal_id, type, key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`

	// The conditional decrement is the whole overdraft guard: the WHERE
	// clause and the decrement are one atomic row write, so no
	// read-check-write race exists under concurrent debits.
	debitAccountSQL = `
		UPDATE accounts
		SET balance = balance - $1, updated_at = $2
		WHERE id = $3 AND balance >= $1`

	finalizeDoneSQL = `
		UPDATE account_withdrawals
		SET done = TRUE, error = FALSE, error_reason = NULL, processed_at = $1,
		    processing = FALSE, processing_started_at = NULL, updated_at = $1
		WHERE id = $2`

	finalizeFailedSQL = `
		UPDATE account_withdrawals
		SET done = TRUE, error = TRUE, error_reason = $1, processed_at = $2,
		    processing = FALSE, processing_started_at = NULL, updated_at = $2
		WHERE id = $3`

	selectWithdrawalSQL = `
		SELECT w.id, w.account_id, w.method, w.amount, w.scheduled, w.scheduled_for,
		       w.done, w.error, w.error_reason, w.processing, w.processing_started_at,
		       w.processed_at, w.created_at, w.updated_at, p.type, p.key
		FROM account_withdrawals w
		LEFT JOIN account_withdrawal_pix p ON p.account_withdrawal_id = w.id
		WHERE w.id = $1`
)

// WithdrawalService is the only creator of withdrawals. Immediate
// withdrawals are driven to a terminal state inside the same
// transaction as their insert; scheduled ones are left for the
// dispatcher.
type WithdrawalService struct {
	db       *sql.DB
	redis    *redis.Client
	notifier Notifier
	clock    Clock
	logger   zerolog.Logger
}

func NewWithdrawalService(db *sql.DB, redisClient *redis.Client, notifier Notifier, clock Clock, logger zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{
		db:       db,
		redis:    redisClient,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// CreateWithdrawal validates the schedule, persists the withdrawal and
// its destination atomically and, for immediate withdrawals, runs the
// debit protocol in the same transaction.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, requestID, accountID string, req *models.WithdrawRequest) (*models.WithdrawOutcome, error) {
	var scheduledFor *time.Time
	if req.Schedule != "" {
		t, err := time.ParseInLocation(models.ScheduleLayout, req.Schedule, time.Local)
		if err != nil {
			return nil, models.ErrInvalidSchedule
		}
		if !t.After(s.clock.Now()) {
			return nil, models.ErrScheduleNotFuture
		}
		scheduledFor = &t
	}

	withdrawalID := uuid.NewString()
	now := s.clock.Now()

	s.logger.Info().
		Str("request_id", requestID).
		Str("withdraw_id", withdrawalID).
		Str("account_id", accountID).
		Str("method", req.Method).
		Str("amount", req.Amount).
		Bool("scheduled", scheduledFor != nil).
		Msg("withdraw.create.start")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertWithdrawalSQL,
		withdrawalID, accountID, req.Method, req.Amount, scheduledFor != nil, scheduledFor, now); err != nil {
		return nil, fmt.Errorf("inserting withdrawal: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertDestinationSQL,
		withdrawalID, req.Pix.Type, req.Pix.Key, now); err != nil {
		return nil, fmt.Errorf("inserting destination: %w", err)
	}

	if scheduledFor != nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing scheduled withdrawal: %w", err)
		}

		s.logger.Info().
			Str("request_id", requestID).
			Str("withdraw_id", withdrawalID).
			Str("account_id", accountID).
			Time("scheduled_for", *scheduledFor).
			Msg("withdraw.create.scheduled")

		return &models.WithdrawOutcome{
			Status:       models.OutcomeScheduled,
			WithdrawalID: withdrawalID,
			ScheduledFor: scheduledFor,
		}, nil
	}

	debited, err := debitAndFinalize(ctx, tx, withdrawalID, accountID, req.Amount, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing withdrawal: %w", err)
	}

	if !debited {
		s.logger.Warn().
			Str("request_id", requestID).
			Str("withdraw_id", withdrawalID).
			Str("account_id", accountID).
			Str("amount", req.Amount).
			Msg("withdraw.create.failed_insufficient_funds")

		return &models.WithdrawOutcome{
			Status:       models.OutcomeFailed,
			WithdrawalID: withdrawalID,
			Reason:       models.ReasonInsufficientFunds,
		}, nil
	}

	invalidateBalanceCache(ctx, s.redis, accountID)

	s.logger.Info().
		Str("request_id", requestID).
		Str("withdraw_id", withdrawalID).
		Str("account_id", accountID).
		Str("amount", req.Amount).
		Time("processed_at", now).
		Msg("withdraw.create.done")

	notifyAsync(s.logger, s.notifier, requestID, WithdrawalNotification{
		WithdrawalID:    withdrawalID,
		DestinationType: req.Pix.Type,
		DestinationKey:  req.Pix.Key,
		Amount:          req.Amount,
		ProcessedAt:     now,
	})

	processedAt := now
	return &models.WithdrawOutcome{
		Status:       models.OutcomeDone,
		WithdrawalID: withdrawalID,
		ProcessedAt:  &processedAt,
		Amount:       req.Amount,
	}, nil
}

// GetWithdrawal returns a withdrawal and its destination.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return getWithdrawal(ctx, s.db, withdrawalID)
}

// debitAndFinalize issues the conditional decrement and records the
// matching terminal state in the same transaction. It returns true when
// the debit landed and false for insufficient funds; both are committed
// by the caller, so a reader never sees done without the debit or the
// debit without done.
func debitAndFinalize(ctx context.Context, tx *sql.Tx, withdrawalID, accountID, amount string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, debitAccountSQL, amount, now, accountID)
	if err != nil {
		return false, fmt.Errorf("debiting account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}

	if affected != 1 {
		// Balance too low (or raced down by a concurrent debit). The
		// account row is untouched; the failure is terminal.
		if _, err := tx.ExecContext(ctx, finalizeFailedSQL,
			models.ReasonInsufficientFunds, now, withdrawalID); err != nil {
			return false, fmt.Errorf("recording insufficient funds: %w", err)
		}
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, finalizeDoneSQL, now, withdrawalID); err != nil {
		return false, fmt.Errorf("finalizing withdrawal: %w", err)
	}
	return true, nil
}

func getWithdrawal(ctx context.Context, db *sql.DB, withdrawalID string) (*models.Withdrawal, error) {
	var (
		w           models.Withdrawal
		scheduled   sql.NullTime
		errorReason sql.NullString
		startedAt   sql.NullTime
		processedAt sql.NullTime
		destType    sql.NullString
		destKey     sql.NullString
	)

	err := db.QueryRowContext(ctx, selectWithdrawalSQL, withdrawalID).Scan(
		&w.ID, &w.AccountID, &w.Method, &w.Amount, &w.Scheduled, &scheduled,
		&w.Done, &w.Error, &errorReason, &w.Processing, &startedAt,
		&processedAt, &w.CreatedAt, &w.UpdatedAt, &destType, &destKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying withdrawal: %w", err)
	}

	if scheduled.Valid {
		w.ScheduledFor = &scheduled.Time
	}
	if errorReason.Valid {
		w.ErrorReason = &errorReason.String
	}
	if startedAt.Valid {
		w.ProcessingStartedAt = &startedAt.Time
	}
	if processedAt.Valid {
		w.ProcessedAt = &processedAt.Time
	}
	if destType.Valid {
		w.Destination = &models.Destination{
			WithdrawalID: w.ID,
			Type:         destType.String,
			Key:          destKey.String,
		}
	}
	return &w, nil
}
