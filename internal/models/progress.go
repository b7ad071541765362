package models

import (
	"encoding/json"
	"time"
)

// Enrollment はenrollmentsテーブルのレコードです。
type Enrollment struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id"`
	CourseID           string     `json:"course_id"`
	ProgressPercentage float64    `json:"progress_percentage"`
	EnrolledAt         time.Time  `json:"enrolled_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Completed はコースを修了しているかどうかを返します。
func (e Enrollment) Completed() bool {
	return e.CompletedAt != nil || e.ProgressPercentage >= 100
}

// LessonProgress はlesson_progressテーブルのレコードです。
type LessonProgress struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id"`
	LessonID           string     `json:"lesson_id"`
	Completed          bool       `json:"completed"`
	ProgressPercentage float64    `json:"progress_percentage"`
	LastWatchedAt      time.Time  `json:"last_watched_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// LessonProgressRequest はレッスン進捗保存APIのリクエストボディです。
type LessonProgressRequest struct {
	ProgressPercentage float64 `json:"progress_percentage" validate:"gte=0,lte=100"`
	Completed          bool    `json:"completed"`
}

// QuizAttempt はquiz_attemptsテーブルのレコードです。
// スコアと合否はバックエンド側で算出されたものをそのまま記録します。
type QuizAttempt struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"user_id"`
	QuizID      string          `json:"quiz_id"`
	Score       float64         `json:"score"`
	Passed      bool            `json:"passed"`
	Answers     json.RawMessage `json:"answers,omitempty"`
	AttemptedAt time.Time       `json:"attempted_at"`
}

// QuizAttemptRequest はクイズ結果記録APIのリクエストボディです。
type QuizAttemptRequest struct {
	Score   float64         `json:"score" validate:"gte=0,lte=100"`
	Passed  bool            `json:"passed"`
	Answers json.RawMessage `json:"answers"`
}
