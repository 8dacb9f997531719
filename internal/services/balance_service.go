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

const balanceCacheTTL = 30 * time.Second

func balanceCacheKey(accountID string) string {
	return "account:balance:" + accountID
}

// BalanceService serves the balance enquiry endpoint with a
// read-through redis cache. The debit paths invalidate the cached entry
// after a successful commit, so a hit is at worst balanceCacheTTL old.
type BalanceService struct {
	db     *sql.DB
	redis  *redis.Client
	logger zerolog.Logger
}

func NewBalanceService(db *sql.DB, redisClient *redis.Client, logger zerolog.Logger) *BalanceService {
	return &BalanceService{db: db, redis: redisClient, logger: logger}
}

// AccountBalance returns the current balance for an account, preferring
// the cache when redis is available.
func (s *BalanceService) AccountBalance(ctx context.Context, accountID string) (*models.AccountBalance, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, balanceCacheKey(accountID)).Result()
		if err == nil {
			return &models.AccountBalance{AccountID: accountID, Balance: cached}, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance.cache.get_failed")
		}
	}

	var balance string
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying balance: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, balanceCacheKey(accountID), balance, balanceCacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance.cache.set_failed")
		}
	}

	return &models.AccountBalance{AccountID: accountID, Balance: balance}, nil
}

// invalidateBalanceCache drops the cached balance after a debit. Best
// effort: the entry also expires on its own.
func invalidateBalanceCache(ctx context.Context, rdb *redis.Client, accountID string) {
	if rdb == nil {
		return
	}
	rdb.Del(ctx, balanceCacheKey(accountID))
}
