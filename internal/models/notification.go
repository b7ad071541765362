package models

import "time"

// NotificationType はnotifications.typeの値です。
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationLesson  NotificationType = "lesson"
	NotificationLive    NotificationType = "live"
)

// Notification はnotificationsテーブルのレコードです。
type Notification struct {
	ID        string           `json:"id,omitempty"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationRequest は管理者による通知作成APIのリクエストボディです。
type NotificationRequest struct {
	UserID  string           `json:"user_id" validate:"required"`
	Title   string           `json:"title" validate:"required,max=120"`
	Message string           `json:"message" validate:"required,max=2000"`
	Type    NotificationType `json:"type" validate:"omitempty,oneof=info success warning lesson live"`
	Link    string           `json:"link" validate:"omitempty,uri"`
}
