// Package dashboard は受講者ダッシュボードの集計を行います。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/trading-academy/academy-web/internal/access"
	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
)

// Sources は集計に使うリポジトリ群です。
type Sources struct {
	Profiles      database.ProfileRepository
	Enrollments   database.EnrollmentRepository
	Quizzes       database.QuizRepository
	Licenses      database.LicenseRepository
	Notifications database.NotificationRepository
	LiveSessions  database.LiveSessionRepository
}

// Service はダッシュボードの集計サービスです。
type Service struct {
	src  Sources
	opts []access.Option
}

// NewService はServiceの新しいインスタンスを作成します。
// opts は次のライブセッションを選ぶときのTier判定に使われ、ゲートと同じものを渡します。
func NewService(src Sources, opts ...access.Option) *Service {
	return &Service{src: src, opts: opts}
}

// Build はユーザーのダッシュボード集計を各リポジトリから並行して取得して組み立てます。
// いずれかの取得に失敗した場合は最初のエラーを返します。
func (s *Service) Build(ctx context.Context, userID string, now time.Time) (*models.DashboardStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error

		profile       *models.Profile
		enrollments   []models.Enrollment
		progress      []models.LessonProgress
		attempts      []models.QuizAttempt
		licenses      []models.BotLicense
		notifications []models.Notification
		sessions      []models.LiveSession
	)

	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("%sの取得に失敗しました: %w", name, err)
					cancel()
				})
			}
		}()
	}

	run("プロフィール", func() (err error) {
		profile, err = s.src.Profiles.GetProfile(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	})
	run("受講登録", func() (err error) {
		enrollments, err = s.src.Enrollments.ListEnrollments(ctx, userID)
		return err
	})
	run("レッスン進捗", func() (err error) {
		progress, err = s.src.Enrollments.ListLessonProgress(ctx, userID)
		return err
	})
	run("クイズ結果", func() (err error) {
		attempts, err = s.src.Quizzes.ListAttempts(ctx, userID)
		return err
	})
	run("ライセンス", func() (err error) {
		licenses, err = s.src.Licenses.ListLicenses(ctx, userID)
		return err
	})
	run("通知", func() (err error) {
		notifications, err = s.src.Notifications.ListNotifications(ctx, userID, true)
		return err
	})
	run("ライブセッション", func() (err error) {
		sessions, err = s.src.LiveSessions.ListUpcoming(ctx, now)
		return err
	})

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	state := access.AuthState{User: &access.User{ID: userID}, Profile: profile}
	visible := func(required models.Tier) bool {
		return access.Allows(state, required, s.opts...)
	}

	stats := &models.DashboardStats{
		EnrolledCourses:     len(enrollments),
		UnreadNotifications: len(notifications),
		AverageQuizScore:    averageScore(attempts),
		OverallProgress:     overallProgress(enrollments),
		NextLiveSession:     nextSession(sessions, visible),
	}
	for _, e := range enrollments {
		if e.Completed() {
			stats.CompletedCourses++
		}
	}
	for _, p := range progress {
		if p.Completed {
			stats.CompletedLessons++
		}
	}
	for _, l := range licenses {
		if l.ActiveAt(now) {
			stats.ActiveLicenses++
		}
	}
	return stats, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func averageScore(attempts []models.QuizAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range attempts {
		sum += a.Score
	}
	return round1(sum / float64(len(attempts)))
}

func overallProgress(enrollments []models.Enrollment) float64 {
	if len(enrollments) == 0 {
		return 0
	}
	var sum float64
	for _, e := range enrollments {
		sum += math.Max(0, math.Min(100, e.ProgressPercentage))
	}
	return round1(sum / float64(len(enrollments)))
}

// nextSession は visible が許可するセッションのうち最も早く始まるものを返します。
func nextSession(sessions []models.LiveSession, visible func(models.Tier) bool) *models.LiveSession {
	var next *models.LiveSession
	for i := range sessions {
		s := sessions[i]
		if !visible(s.TierRequired) {
			continue
		}
		if next == nil || s.ScheduledAt.Before(next.ScheduledAt) {
			next = &s
		}
	}
	return next
}
