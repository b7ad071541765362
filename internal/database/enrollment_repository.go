package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/trading-academy/academy-web/internal/models"
)

const (
	enrollmentsTable    = "enrollments"
	lessonProgressTable = "lesson_progress"
)

// EnrollmentRepository は受講登録とレッスン進捗の操作を定義するインターフェースです。
type EnrollmentRepository interface {
	ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)
	// Enroll は受講登録を作成します。既に登録済みなら既存のレコードを返します。
	Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	ListLessonProgress(ctx context.Context, userID string) ([]models.LessonProgress, error)
	// SaveLessonProgress はレッスン進捗を保存します。進捗率は後退せず、一度完了したレッスンは完了のままです。
	SaveLessonProgress(ctx context.Context, progress models.LessonProgress) (*models.LessonProgress, error)
}

type enrollmentRepositoryImpl struct {
	rest RestClient
	now  func() time.Time
}

// NewEnrollmentRepository はEnrollmentRepositoryの新しいインスタンスを作成します。
func NewEnrollmentRepository(rest RestClient) EnrollmentRepository {
	return &enrollmentRepositoryImpl{rest: rest, now: time.Now}
}

func (r *enrollmentRepositoryImpl) ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	rows, err := query(ctx, func(dest *[]models.Enrollment) error {
		_, err := r.rest.From(enrollmentsTable).
			Select("*", "", false).
			Eq("user_id", userID).
			Order("enrolled_at", desc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("受講登録の取得に失敗しました: %w", err)
	}
	return rows, nil
}

func (r *enrollmentRepositoryImpl) findEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	rows, err := query(ctx, func(dest *[]models.Enrollment) error {
		_, err := r.rest.From(enrollmentsTable).
			Select("*", "", false).
			Eq("user_id", userID).
			Eq("course_id", courseID).
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("受講登録の確認に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *enrollmentRepositoryImpl) Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	existing, err := r.findEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	row := models.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: r.now().UTC(),
	}
	rows, err := query(ctx, func(dest *[]models.Enrollment) error {
		_, err := r.rest.From(enrollmentsTable).
			Insert(row, true, "user_id,course_id", "representation", "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("受講登録の作成に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return &row, nil
	}
	return &rows[0], nil
}

func (r *enrollmentRepositoryImpl) ListLessonProgress(ctx context.Context, userID string) ([]models.LessonProgress, error) {
	rows, err := query(ctx, func(dest *[]models.LessonProgress) error {
		_, err := r.rest.From(lessonProgressTable).
			Select("*", "", false).
			Eq("user_id", userID).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("レッスン進捗の取得に失敗しました: %w", err)
	}
	return rows, nil
}

func (r *enrollmentRepositoryImpl) SaveLessonProgress(ctx context.Context, progress models.LessonProgress) (*models.LessonProgress, error) {
	existing, err := query(ctx, func(dest *[]models.LessonProgress) error {
		_, err := r.rest.From(lessonProgressTable).
			Select("*", "", false).
			Eq("user_id", progress.UserID).
			Eq("lesson_id", progress.LessonID).
			Limit(1, "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("既存のレッスン進捗の取得に失敗しました: %w", err)
	}

	merged := mergeProgress(existing, progress, r.now().UTC())
	rows, err := query(ctx, func(dest *[]models.LessonProgress) error {
		_, err := r.rest.From(lessonProgressTable).
			Insert(merged, true, "user_id,lesson_id", "representation", "").
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("レッスン進捗の保存に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return &merged, nil
	}
	return &rows[0], nil
}

// mergeProgress は既存の進捗と新しい進捗をまとめます。
func mergeProgress(existing []models.LessonProgress, next models.LessonProgress, now time.Time) models.LessonProgress {
	merged := next
	merged.ProgressPercentage = math.Max(0, math.Min(100, next.ProgressPercentage))
	merged.LastWatchedAt = now

	if len(existing) > 0 {
		prev := existing[0]
		merged.ID = prev.ID
		merged.ProgressPercentage = math.Max(merged.ProgressPercentage, prev.ProgressPercentage)
		if prev.Completed {
			merged.Completed = true
			merged.CompletedAt = prev.CompletedAt
		}
	}

	if merged.ProgressPercentage >= 100 {
		merged.Completed = true
	}
	if merged.Completed {
		merged.ProgressPercentage = 100
		if merged.CompletedAt == nil {
			merged.CompletedAt = &now
		}
	}
	return merged
}
