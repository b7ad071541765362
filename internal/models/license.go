package models

import "time"

// LicenseStatus はbot_licenses.statusの値です。
type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseSuspended LicenseStatus = "suspended"
	LicenseExpired   LicenseStatus = "expired"
)

// BotLicense はbot_licensesテーブルのレコードです。
type BotLicense struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	BotName    string        `json:"bot_name"`
	LicenseKey string        `json:"license_key"`
	Status     LicenseStatus `json:"status"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ActiveAt は now 時点で有効なライセンスかどうかを返します。
func (l BotLicense) ActiveAt(now time.Time) bool {
	if l.Status != LicenseActive {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}
