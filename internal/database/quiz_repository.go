package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const quizAttemptsTable = "quiz_attempts"

// QuizRepository はクイズ受験記録の操作を定義するインターフェースです。
type QuizRepository interface {
	RecordAttempt(ctx context.Context, attempt models.QuizAttempt) (*models.QuizAttempt, error)
	ListAttempts(ctx context.Context, userID string) ([]models.QuizAttempt, error)
}

type quizRepositoryImpl struct {
	rest RestClient
	now  func() time.Time
}

// NewQuizRepository はQuizRepositoryの新しいインスタンスを作成します。
func NewQuizRepository(rest RestClient) QuizRepository {
	return &quizRepositoryImpl{rest: rest, now: time.Now}
}

// RecordAttempt は受験結果をそのまま記録します。スコアの計算は行いません。
func (r *quizRepositoryImpl) RecordAttempt(ctx context.Context, attempt models.QuizAttempt) (*models.QuizAttempt, error) {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = r.now().UTC()
	}
	rows, err := query(ctx, func(dest *[]models.QuizAttempt) error {
		_, err := r.rest.From(quizAttemptsTable).
			Insert(attempt, false, "", "representation", "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("クイズ結果の記録に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return &attempt, nil
	}
	return &rows[0], nil
}

func (r *quizRepositoryImpl) ListAttempts(ctx context.Context, userID string) ([]models.QuizAttempt, error) {
	rows, err := query(ctx, func(dest *[]models.QuizAttempt) error {
		_, err := r.rest.From(quizAttemptsTable).
			Select("*", "", false).
			Eq("user_id", userID).
			Order("attempted_at", desc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("クイズ結果の取得に失敗しました: %w", err)
	}
	return rows, nil
}
