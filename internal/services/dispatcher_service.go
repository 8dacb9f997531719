package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/contadigital/backend/internal/models"
)

const (
	selectDueSQL = `
		SELECT id
		FROM account_withdrawals
		WHERE scheduled = TRUE AND done = FALSE AND processing = FALSE
		  AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2`

	// The conditional claim is the only mutual exclusion between
	// concurrent dispatcher instances: exactly one racer sees one
	// affected row, everyone else sees zero and moves on.
	claimWithdrawalSQL = `
		UPDATE account_withdrawals
		SET processing = TRUE, processing_started_at = $1, updated_at = $1
		WHERE id = $2 AND processing = FALSE AND done = FALSE`

	releaseClaimSQL = `
		UPDATE account_withdrawals
		SET processing = FALSE, processing_started_at = NULL, updated_at = $1
		WHERE id = $2`
)

// defaultBatchSize bounds per-cycle latency and memory.
const defaultBatchSize = 50

// DispatcherService runs one batch cycle over due scheduled
// withdrawals. Any number of instances may run cycles concurrently.
type DispatcherService struct {
	db        *sql.DB
	redis     *redis.Client
	notifier  Notifier
	clock     Clock
	logger    zerolog.Logger
	batchSize int
}

func NewDispatcherService(db *sql.DB, redisClient *redis.Client, notifier Notifier, clock Clock, logger zerolog.Logger) *DispatcherService {
	return &DispatcherService{
		db:        db,
		redis:     redisClient,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// ProcessDue selects due candidates, claims them one at a time and
// drives each claimed withdrawal to a terminal state. It returns how
// many withdrawals this cycle drove to completion; claims lost to other
// instances are skipped silently and a failed execution releases its
// claim for a later cycle.
func (d *DispatcherService) ProcessDue(ctx context.Context) (int, error) {
	now := d.clock.Now()
	runID := "cron-" + now.Format("20060102150405")

	d.logger.Info().
		Str("request_id", runID).
		Time("now", now).
		Msg("cron.withdraw.start")

	candidates, err := d.dueCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	if len(candidates) == 0 {
		d.logger.Info().Str("request_id", runID).Msg("cron.withdraw.noop")
		return 0, nil
	}

	processed := 0
	for _, withdrawalID := range candidates {
		claimed, err := d.claim(ctx, withdrawalID, now)
		if err != nil {
			d.logger.Error().Err(err).
				Str("request_id", runID).
				Str("withdraw_id", withdrawalID).
				Msg("cron.withdraw.process.exception")
			continue
		}
		if !claimed {
			// Another instance got there first; not an error.
			continue
		}

		if err := d.processOne(ctx, runID, withdrawalID, now); err != nil {
			d.logger.Error().Err(err).
				Str("request_id", runID).
				Str("withdraw_id", withdrawalID).
				Msg("cron.withdraw.process.exception")

			d.release(ctx, withdrawalID, now)
			continue
		}
		processed++
	}

	d.logger.Info().
		Str("request_id", runID).
		Int("processed", processed).
		Msg("cron.withdraw.finish")

	return processed, nil
}

func (d *DispatcherService) dueCandidates(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, selectDueSQL, now, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("selecting due withdrawals: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return ids, nil
}

func (d *DispatcherService) claim(ctx context.Context, withdrawalID string, now time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx, claimWithdrawalSQL, now, withdrawalID)
	if err != nil {
		return false, fmt.Errorf("claiming withdrawal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading claim result: %w", err)
	}
	return affected == 1, nil
}

// processOne re-reads the claimed withdrawal and runs the debit
// protocol in one transaction. Insufficient funds is a terminal
// outcome, not an error; only unexpected faults propagate so the caller
// can release the claim.
func (d *DispatcherService) processOne(ctx context.Context, runID, withdrawalID string, now time.Time) error {
	w, err := getWithdrawal(ctx, d.db, withdrawalID)
	if err != nil {
		if errors.Is(err, models.ErrWithdrawalNotFound) {
			return nil
		}
		return err
	}

	d.logger.Info().
		Str("request_id", runID).
		Str("withdraw_id", w.ID).
		Str("account_id", w.AccountID).
		Str("amount", w.Amount).
		Msg("cron.withdraw.process.start")

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	debited, err := debitAndFinalize(ctx, tx, w.ID, w.AccountID, w.Amount, now)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing withdrawal: %w", err)
	}

	if !debited {
		d.logger.Warn().
			Str("request_id", runID).
			Str("withdraw_id", w.ID).
			Str("account_id", w.AccountID).
			Str("amount", w.Amount).
			Msg("cron.withdraw.process.insufficient_funds")
		return nil
	}

	invalidateBalanceCache(ctx, d.redis, w.AccountID)

	d.logger.Info().
		Str("request_id", runID).
		Str("withdraw_id", w.ID).
		Str("account_id", w.AccountID).
		Str("amount", w.Amount).
		Msg("cron.withdraw.process.done")

	if w.Destination != nil && w.Destination.Key != "" {
		notifyAsync(d.logger, d.notifier, runID, WithdrawalNotification{
			WithdrawalID:    w.ID,
			DestinationType: w.Destination.Type,
			DestinationKey:  w.Destination.Key,
			Amount:          w.Amount,
			ProcessedAt:     now,
		})
	}
	return nil
}

// release puts a claimed withdrawal back on the queue after an
// unexpected fault. A failure here only means the row stays claimed
// until someone looks at it, so it is logged and swallowed.
func (d *DispatcherService) release(ctx context.Context, withdrawalID string, now time.Time) {
	if _, err := d.db.ExecContext(ctx, releaseClaimSQL, now, withdrawalID); err != nil {
		d.logger.Error().Err(err).
			Str("withdraw_id", withdrawalID).
			Msg("cron.withdraw.release.failed")
	}
}
