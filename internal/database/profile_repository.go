package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const profilesTable = "profiles"

// ProfileRepository はプロフィール関連のバックエンド操作を定義するインターフェースです。
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// IncrementQueryUsage はAIクエリの使用数を1つ増やし、更新後のプロフィールを返します。
	IncrementQueryUsage(ctx context.Context, userID string) (*models.Profile, error)
}

// profileRepositoryImpl はProfileRepositoryインターフェースの実装です。
type profileRepositoryImpl struct {
	rest RestClient
	now  func() time.Time
}

// NewProfileRepository はProfileRepositoryの新しいインスタンスを作成します。
func NewProfileRepository(rest RestClient) ProfileRepository {
	return &profileRepositoryImpl{rest: rest, now: time.Now}
}

// GetProfile は指定されたユーザーIDのプロフィールを取得します。
func (r *profileRepositoryImpl) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	rows, err := query(ctx, func(dest *[]models.Profile) error {
		_, err := r.rest.From(profilesTable).
			Select("*", "", false).
			Eq("id", userID).
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// IncrementQueryUsage は使用数を楽観的に更新します。
// 他のリクエストと競合した場合は一度だけ読み直して再試行します。
func (r *profileRepositoryImpl) IncrementQueryUsage(ctx context.Context, userID string) (*models.Profile, error) {
	for attempt := 0; attempt < 2; attempt++ {
		profile, err := r.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if profile.AIQueriesUsed >= profile.AIQueriesLimit {
			return nil, ErrQuotaExceeded
		}

		update := map[string]interface{}{
			"ai_queries_used": profile.AIQueriesUsed + 1,
			"updated_at":      r.now().UTC(),
		}
		rows, err := query(ctx, func(dest *[]models.Profile) error {
			_, err := r.rest.From(profilesTable).
				Update(update, "representation", "").
				Eq("id", userID).
				Eq("ai_queries_used", strconv.Itoa(profile.AIQueriesUsed)).
				ExecuteTo(dest)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("クエリ使用数の更新に失敗しました: %w", err)
		}
		if len(rows) == 1 {
			return &rows[0], nil
		}
	}
	return nil, ErrConflict
}
