// Package cache はRedisによるプロフィールのキャッシュを提供します。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/database"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/metrics"
	"github.com/trading-academy/academy-web/internal/models"
)

// DefaultProfileTTL はプロフィールをキャッシュする既定の期間です。
const DefaultProfileTTL = 5 * time.Minute

// ProfileStore はキャッシュの無効化もできるProfileRepositoryです。
type ProfileStore interface {
	database.ProfileRepository
	Invalidate(ctx context.Context, userID string) error
}

// NewRedisClient はRedisクライアントを作成し、疎通を確認します。
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// CachedProfileRepository はGetProfileの結果をRedisにキャッシュします。
// Redisのエラーはログに残してバックエンドに問い合わせます。
type CachedProfileRepository struct {
	next   database.ProfileRepository
	redis  redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProfileRepository はCachedProfileRepositoryを作成します。
func NewCachedProfileRepository(next database.ProfileRepository, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedProfileRepository {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	logger = applog.OrNop(logger)
	return &CachedProfileRepository{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// GetProfile はキャッシュにあればそれを、無ければバックエンドから取得してキャッシュします。
func (c *CachedProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	key := profileKey(userID)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var profile models.Profile
		if jsonErr := json.Unmarshal([]byte(val), &profile); jsonErr == nil {
			metrics.ProfileCache.WithLabelValues("hit").Inc()
			return &profile, nil
		}
		c.logger.Warn("キャッシュ上のプロフィールを読み取れません", zap.String("user_id", userID))
	case errors.Is(err, redis.Nil):
	default:
		metrics.ProfileCache.WithLabelValues("error").Inc()
		c.logger.Warn("Redisからの取得に失敗しました", zap.String("user_id", userID), zap.Error(err))
	}

	metrics.ProfileCache.WithLabelValues("miss").Inc()
	profile, err := c.next.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// IncrementQueryUsage はバックエンドを更新し、新しいプロフィールでキャッシュを置き換えます。
func (c *CachedProfileRepository) IncrementQueryUsage(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := c.next.IncrementQueryUsage(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrConflict) || errors.Is(err, database.ErrQuotaExceeded) {
			_ = c.Invalidate(ctx, userID)
		}
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// Invalidate はユーザーのキャッシュを削除します。
func (c *CachedProfileRepository) Invalidate(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, profileKey(userID)).Err(); err != nil {
		c.logger.Warn("キャッシュの削除に失敗しました", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("キャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

func (c *CachedProfileRepository) store(ctx context.Context, profile *models.Profile) {
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, profileKey(profile.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("キャッシュへの保存に失敗しました", zap.String("user_id", profile.ID), zap.Error(err))
	}
}

// passthrough はRedisを使わない場合のProfileStoreです。
type passthrough struct {
	database.ProfileRepository
}

func (passthrough) Invalidate(context.Context, string) error { return nil }

// Passthrough はキャッシュ無しでrepoをそのまま使うProfileStoreを返します。
func Passthrough(repo database.ProfileRepository) ProfileStore {
	return passthrough{repo}
}

var _ ProfileStore = (*CachedProfileRepository)(nil)
