package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier は購読プランのレベルです。starter < academy < elite の全順序を持ちます。
type Tier string

const (
	TierStarter Tier = "starter"
	TierAcademy Tier = "academy"
	TierElite   Tier = "elite"
)

// tierRanks は Tier の順位表です。宣言順やマップの走査順には依存しません。
var tierRanks = map[Tier]int{
	TierStarter: 1,
	TierAcademy: 2,
	TierElite:   3,
}

// Tiers は順位の昇順に並んだ全ての Tier を返します。
func Tiers() []Tier {
	return []Tier{TierStarter, TierAcademy, TierElite}
}

// Rank は Tier の順位を返します。未知の Tier は 0 です。
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Valid は既知の Tier かどうかを返します。
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// AtLeast は t が required 以上の順位であれば true を返します。
func (t Tier) AtLeast(required Tier) bool {
	return t.Rank() >= required.Rank()
}

// ParseTier は大文字小文字を区別せずに Tier を解析します。
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// SubscriptionStatus は profiles.subscription_status の値です。
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Profile はprofilesテーブルのレコードに対応する構造体です。
type Profile struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	FullName           string             `json:"full_name"`
	AvatarURL          string             `json:"avatar_url,omitempty"`
	Tier               Tier               `json:"tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	AIQueriesUsed      int                `json:"ai_queries_used"`
	AIQueriesLimit     int                `json:"ai_queries_limit"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// RemainingQueries は残りのクエリ数を返します。上限を超えていても負にはなりません。
func (p *Profile) RemainingQueries() int {
	if p.AIQueriesUsed >= p.AIQueriesLimit {
		return 0
	}
	return p.AIQueriesLimit - p.AIQueriesUsed
}

// DisplayName は表示用の名前を返します。
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		return strings.SplitN(p.Email, "@", 2)[0]
	}
	return "Trader"
}
