package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const liveSessionsTable = "live_sessions"

// LiveSessionRepository はライブセッションの読み取りを定義するインターフェースです。
type LiveSessionRepository interface {
	// ListUpcoming は now の時点でまだ終わっていない予定中・配信中のセッションを開始時刻順に返します。
	ListUpcoming(ctx context.Context, now time.Time) ([]models.LiveSession, error)
}

type liveSessionRepositoryImpl struct {
	rest RestClient
}

// NewLiveSessionRepository はLiveSessionRepositoryの新しいインスタンスを作成します。
func NewLiveSessionRepository(rest RestClient) LiveSessionRepository {
	return &liveSessionRepositoryImpl{rest: rest}
}

func (r *liveSessionRepositoryImpl) ListUpcoming(ctx context.Context, now time.Time) ([]models.LiveSession, error) {
	rows, err := query(ctx, func(dest *[]models.LiveSession) error {
		_, err := r.rest.From(liveSessionsTable).
			Select("*", "", false).
			In("status", []string{string(models.LiveScheduled), string(models.LiveNow)}).
			Order("scheduled_at", asc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ライブセッションの取得に失敗しました: %w", err)
	}

	upcoming := make([]models.LiveSession, 0, len(rows))
	for _, s := range rows {
		if s.EndsAt().After(now) {
			upcoming = append(upcoming, s)
		}
	}
	return upcoming, nil
}
