package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const notificationsTable = "notifications"

// NotificationRepository は通知の操作を定義するインターフェースです。
type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
	Create(ctx context.Context, n models.Notification) (*models.Notification, error)
}

type notificationRepositoryImpl struct {
	rest RestClient
	now  func() time.Time
}

// NewNotificationRepository はNotificationRepositoryの新しいインスタンスを作成します。
func NewNotificationRepository(rest RestClient) NotificationRepository {
	return &notificationRepositoryImpl{rest: rest, now: time.Now}
}

func (r *notificationRepositoryImpl) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	rows, err := query(ctx, func(dest *[]models.Notification) error {
		f := r.rest.From(notificationsTable).
			Select("*", "", false).
			Eq("user_id", userID)
		if unreadOnly {
			f = f.Eq("read", "false")
		}
		_, err := f.Order("created_at", desc()).
			Limit(50, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	return rows, nil
}

// MarkRead は本人の通知だけを既読にします。該当が無ければ ErrNotFound を返します。
func (r *notificationRepositoryImpl) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	rows, err := query(ctx, func(dest *[]models.Notification) error {
		_, err := r.rest.From(notificationsTable).
			Update(map[string]interface{}{"read": true}, "representation", "").
			Eq("id", notificationID).
			Eq("user_id", userID).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (r *notificationRepositoryImpl) Create(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.Type == "" {
		n.Type = models.NotificationInfo
	}
	n.Read = false
	n.CreatedAt = r.now().UTC()
	rows, err := query(ctx, func(dest *[]models.Notification) error {
		_, err := r.rest.From(notificationsTable).
			Insert(n, false, "", "representation", "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return &n, nil
	}
	return &rows[0], nil
}
