package models

import (
	"encoding/json"
	"time"
)

// Lead はマーケティング用クイズを完了した見込み客です。
type Lead struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Answers         json.RawMessage `json:"answers"`
	Score           int             `json:"score"`
	RecommendedTier Tier            `json:"recommended_tier"`
	Source          string          `json:"source,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LeadRequest はリード送信APIのリクエストボディです。
type LeadRequest struct {
	Name    string            `json:"name" validate:"required,max=120"`
	Email   string            `json:"email" validate:"required,email"`
	Phone   string            `json:"phone" validate:"omitempty,max=32"`
	Answers map[string]string `json:"answers" validate:"required"`
	Source  string            `json:"source" validate:"omitempty,max=64"`
}
