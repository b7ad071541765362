package database

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trading-academy/academy-web/internal/models"
)

// TestListUpcoming は終了済みのセッションを除外することをテストします
func TestListUpcoming(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	fake, client := newFakePostgrest(t)
	fake.respond(liveSessionsTable, []models.LiveSession{
		{ID: "past", ScheduledAt: now.Add(-2 * time.Hour), DurationMinutes: 60, Status: models.LiveScheduled},
		{ID: "running", ScheduledAt: now.Add(-30 * time.Minute), DurationMinutes: 60, Status: models.LiveNow},
		{ID: "next", ScheduledAt: now.Add(24 * time.Hour), DurationMinutes: 90, Status: models.LiveScheduled},
	})

	sessions, err := NewLiveSessionRepository(client).ListUpcoming(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "running", sessions[0].ID)
	assert.Equal(t, "next", sessions[1].ID)

	reqs := fake.requestsTo(liveSessionsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, "in.(scheduled,live)", reqs[0].Query.Get("status"))
}

// TestListPosts はカテゴリ指定と並び順が問い合わせに反映されることをテストします
func TestListPosts(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(communityPostsTable, []models.CommunityPost{{ID: "p1", IsPinned: true}, {ID: "p2"}})

	posts, err := NewCommunityRepository(client).ListPosts(context.Background(), "bots", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	reqs := fake.requestsTo(communityPostsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, "eq.bots", reqs[0].Query.Get("category"))
	assert.Equal(t, "50", reqs[0].Query.Get("limit"))
	order := reqs[0].Query.Get("order")
	assert.Contains(t, order, "is_pinned.desc")
	assert.Contains(t, order, "created_at.desc")
}

// TestCreatePost は未指定のカテゴリがgeneralになることをテストします
func TestCreatePost(t *testing.T) {
	fake, client := newFakePostgrest(t)

	post, err := NewCommunityRepository(client).CreatePost(context.Background(), models.CommunityPost{
		UserID: "u1", Title: "First win", Content: "EURUSD",
	})
	require.NoError(t, err)
	assert.Equal(t, "general", post.Category)

	reqs := fake.requestsTo(communityPostsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Contains(t, reqs[0].Body, `"category":"general"`)
}

// TestListNotifications_UnreadOnly は未読のみの絞り込みをテストします
func TestListNotifications_UnreadOnly(t *testing.T) {
	fake, client := newFakePostgrest(t)

	_, err := NewNotificationRepository(client).ListNotifications(context.Background(), "u1", true)
	require.NoError(t, err)

	reqs := fake.requestsTo(notificationsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, "eq.u1", reqs[0].Query.Get("user_id"))
	assert.Equal(t, "eq.false", reqs[0].Query.Get("read"))
}

// TestMarkRead は本人の通知に限定して既読にすることをテストします
func TestMarkRead(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(notificationsTable, []models.Notification{{ID: "n1", UserID: "u1", Read: true}})

	n, err := NewNotificationRepository(client).MarkRead(context.Background(), "u1", "n1")
	require.NoError(t, err)
	assert.True(t, n.Read)

	reqs := fake.requestsTo(notificationsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "eq.n1", reqs[0].Query.Get("id"))
	assert.Equal(t, "eq.u1", reqs[0].Query.Get("user_id"))
}

// TestMarkRead_NotFound は他人の通知や存在しない通知がErrNotFoundになることをテストします
func TestMarkRead_NotFound(t *testing.T) {
	_, client := newFakePostgrest(t)

	_, err := NewNotificationRepository(client).MarkRead(context.Background(), "u1", "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestRecordAttempt は受験日時を補って記録することをテストします
func TestRecordAttempt(t *testing.T) {
	fake, client := newFakePostgrest(t)

	attempt, err := NewQuizRepository(client).RecordAttempt(context.Background(), models.QuizAttempt{
		UserID: "u1", QuizID: "q1", Score: 80, Passed: true,
	})
	require.NoError(t, err)
	assert.False(t, attempt.AttemptedAt.IsZero())
	assert.Len(t, fake.requestsTo(quizAttemptsTable), 1)
}

// TestListLicenses はユーザーIDで絞り込むことをテストします
func TestListLicenses(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(botLicensesTable, []models.BotLicense{{ID: "b1", Status: models.LicenseActive}})

	licenses, err := NewLicenseRepository(client).ListLicenses(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, licenses, 1)

	reqs := fake.requestsTo(botLicensesTable)
	assert.Equal(t, "eq.u1", reqs[0].Query.Get("user_id"))
}
