// Package fakes はテスト用のインメモリなリポジトリ実装を提供します。
package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
)

// Store は全リポジトリインターフェースを満たすインメモリのストアです。
// Err を設定すると全ての操作がそのエラーを返します。
type Store struct {
	mu sync.Mutex

	Profiles      map[string]*models.Profile
	Courses       []models.Course
	Lessons       map[string]models.LessonDetail
	Enrollments   []models.Enrollment
	Progress      []models.LessonProgress
	Attempts      []models.QuizAttempt
	Licenses      []models.BotLicense
	Sessions      []models.LiveSession
	Posts         []models.CommunityPost
	Notifications []models.Notification
	Leads         []models.Lead

	Err error
	seq int
}

// NewStore は空のStoreを作成します。
func NewStore() *Store {
	return &Store{
		Profiles: map[string]*models.Profile{},
		Lessons:  map[string]models.LessonDetail{},
	}
}

var (
	_ database.ProfileRepository      = (*Store)(nil)
	_ database.CourseRepository       = (*Store)(nil)
	_ database.EnrollmentRepository   = (*Store)(nil)
	_ database.QuizRepository         = (*Store)(nil)
	_ database.LicenseRepository      = (*Store)(nil)
	_ database.LiveSessionRepository  = (*Store)(nil)
	_ database.CommunityRepository    = (*Store)(nil)
	_ database.NotificationRepository = (*Store)(nil)
	_ database.LeadRepository         = (*Store)(nil)
)

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Store) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.Profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) IncrementQueryUsage(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.Profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if p.AIQueriesUsed >= p.AIQueriesLimit {
		return nil, database.ErrQuotaExceeded
	}
	p.AIQueriesUsed++
	cp := *p
	return &cp, nil
}

func (s *Store) ListPublishedCourses(_ context.Context) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Course{}
	for _, c := range s.Courses {
		if c.IsPublished {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *Store) GetCourse(_ context.Context, courseID string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.Courses {
		if c.ID == courseID && c.IsPublished {
			cp := c
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) GetLesson(_ context.Context, lessonID string) (*models.LessonDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	l, ok := s.Lessons[lessonID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListEnrollments(_ context.Context, userID string) ([]models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Enrollment{}
	for _, e := range s.Enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Enroll(_ context.Context, userID, courseID string) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, e := range s.Enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			cp := e
			return &cp, nil
		}
	}
	e := models.Enrollment{ID: s.nextID("enrollment"), UserID: userID, CourseID: courseID, EnrolledAt: time.Now().UTC()}
	s.Enrollments = append(s.Enrollments, e)
	return &e, nil
}

func (s *Store) ListLessonProgress(_ context.Context, userID string) ([]models.LessonProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.LessonProgress{}
	for _, p := range s.Progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) SaveLessonProgress(_ context.Context, progress models.LessonProgress) (*models.LessonProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for i, p := range s.Progress {
		if p.UserID == progress.UserID && p.LessonID == progress.LessonID {
			progress.ID = p.ID
			s.Progress[i] = progress
			return &progress, nil
		}
	}
	progress.ID = s.nextID("progress")
	s.Progress = append(s.Progress, progress)
	return &progress, nil
}

func (s *Store) RecordAttempt(_ context.Context, attempt models.QuizAttempt) (*models.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	attempt.ID = s.nextID("attempt")
	s.Attempts = append(s.Attempts, attempt)
	return &attempt, nil
}

func (s *Store) ListAttempts(_ context.Context, userID string) ([]models.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.QuizAttempt{}
	for _, a := range s.Attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListLicenses(_ context.Context, userID string) ([]models.BotLicense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.BotLicense{}
	for _, l := range s.Licenses {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ListUpcoming(_ context.Context, now time.Time) ([]models.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.LiveSession{}
	for _, ls := range s.Sessions {
		if (ls.Status == models.LiveScheduled || ls.Status == models.LiveNow) && ls.EndsAt().After(now) {
			out = append(out, ls)
		}
	}
	return out, nil
}

func (s *Store) ListPosts(_ context.Context, category string, limit int) ([]models.CommunityPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.CommunityPost{}
	for _, p := range s.Posts {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreatePost(_ context.Context, post models.CommunityPost) (*models.CommunityPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	post.ID = s.nextID("post")
	if post.Category == "" {
		post.Category = "general"
	}
	s.Posts = append(s.Posts, post)
	return &post, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Notification{}
	for _, n := range s.Notifications {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, userID, notificationID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for i, n := range s.Notifications {
		if n.ID == notificationID && n.UserID == userID {
			s.Notifications[i].Read = true
			cp := s.Notifications[i]
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) Create(_ context.Context, n models.Notification) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	n.ID = s.nextID("notification")
	if n.Type == "" {
		n.Type = models.NotificationInfo
	}
	s.Notifications = append(s.Notifications, n)
	return &n, nil
}

func (s *Store) SaveLead(_ context.Context, lead models.Lead) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if lead.ID == "" {
		lead.ID = s.nextID("lead")
	}
	s.Leads = append(s.Leads, lead)
	return &lead, nil
}

func (s *Store) ListLeads(_ context.Context, since time.Time) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Lead{}
	for _, l := range s.Leads {
		if !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}
