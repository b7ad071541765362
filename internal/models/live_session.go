package models

import "time"

// LiveSessionStatus はlive_sessions.statusの値です。
type LiveSessionStatus string

const (
	LiveScheduled LiveSessionStatus = "scheduled"
	LiveNow       LiveSessionStatus = "live"
	LiveEnded     LiveSessionStatus = "ended"
	LiveCancelled LiveSessionStatus = "cancelled"
)

// LiveSession はlive_sessionsテーブルのレコードです。
type LiveSession struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Host            string            `json:"host"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	DurationMinutes int               `json:"duration_minutes"`
	MeetingURL      string            `json:"meeting_url,omitempty"`
	TierRequired    Tier              `json:"tier_required"`
	Status          LiveSessionStatus `json:"status"`
}

// EndsAt は予定終了時刻を返します。
func (s LiveSession) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
