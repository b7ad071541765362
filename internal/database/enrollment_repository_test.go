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

// TestEnroll_Existing は登録済みの場合に新しい行を作らないことをテストします
func TestEnroll_Existing(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(enrollmentsTable, []models.Enrollment{{ID: "e1", UserID: "u1", CourseID: "c1"}})

	enrollment, err := NewEnrollmentRepository(client).Enroll(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "e1", enrollment.ID)

	reqs := fake.requestsTo(enrollmentsTable)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "eq.u1", reqs[0].Query.Get("user_id"))
	assert.Equal(t, "eq.c1", reqs[0].Query.Get("course_id"))
}

// TestEnroll_New は未登録の場合にupsertで登録することをテストします
func TestEnroll_New(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(enrollmentsTable, []models.Enrollment{})
	fake.respond(enrollmentsTable, []models.Enrollment{{ID: "e2", UserID: "u1", CourseID: "c1"}})

	enrollment, err := NewEnrollmentRepository(client).Enroll(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "e2", enrollment.ID)

	reqs := fake.requestsTo(enrollmentsTable)
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "user_id,course_id", reqs[1].Query.Get("on_conflict"))
	assert.Contains(t, reqs[1].Prefer, "return=representation")
	assert.Contains(t, reqs[1].Body, `"course_id":"c1"`)
}

// TestMergeProgress は進捗が後退せず完了状態が維持されることをテストします
func TestMergeProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-24 * time.Hour)

	tests := []struct {
		name          string
		existing      []models.LessonProgress
		next          models.LessonProgress
		wantPercent   float64
		wantCompleted bool
		wantDoneAt    time.Time
	}{
		{
			name:          "初回の保存",
			next:          models.LessonProgress{ProgressPercentage: 40},
			wantPercent:   40,
			wantCompleted: false,
		},
		{
			name:        "進捗は後退しない",
			existing:    []models.LessonProgress{{ID: "p1", ProgressPercentage: 70}},
			next:        models.LessonProgress{ProgressPercentage: 30},
			wantPercent: 70,
		},
		{
			name:          "100%で完了になる",
			next:          models.LessonProgress{ProgressPercentage: 100},
			wantPercent:   100,
			wantCompleted: true,
			wantDoneAt:    now,
		},
		{
			name:          "完了済みは完了のまま",
			existing:      []models.LessonProgress{{ID: "p1", Completed: true, ProgressPercentage: 100, CompletedAt: &earlier}},
			next:          models.LessonProgress{ProgressPercentage: 10},
			wantPercent:   100,
			wantCompleted: true,
			wantDoneAt:    earlier,
		},
		{
			name:          "範囲外の値は丸める",
			next:          models.LessonProgress{ProgressPercentage: -5},
			wantPercent:   0,
			wantCompleted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeProgress(tt.existing, tt.next, now)
			assert.Equal(t, tt.wantPercent, got.ProgressPercentage)
			assert.Equal(t, tt.wantCompleted, got.Completed)
			assert.Equal(t, now, got.LastWatchedAt)
			if tt.wantCompleted {
				require.NotNil(t, got.CompletedAt)
				assert.Equal(t, tt.wantDoneAt, *got.CompletedAt)
			} else {
				assert.Nil(t, got.CompletedAt)
			}
		})
	}
}

// TestSaveLessonProgress は既存行のIDを引き継いでupsertすることをテストします
func TestSaveLessonProgress(t *testing.T) {
	fake, client := newFakePostgrest(t)
	fake.respond(lessonProgressTable, []models.LessonProgress{{ID: "p1", UserID: "u1", LessonID: "l1", ProgressPercentage: 50}})

	saved, err := NewEnrollmentRepository(client).SaveLessonProgress(context.Background(), models.LessonProgress{
		UserID: "u1", LessonID: "l1", ProgressPercentage: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.ID)
	assert.Equal(t, 80.0, saved.ProgressPercentage)

	reqs := fake.requestsTo(lessonProgressTable)
	require.Len(t, reqs, 2)
	assert.Equal(t, "user_id,lesson_id", reqs[1].Query.Get("on_conflict"))
	assert.Contains(t, reqs[1].Body, `"id":"p1"`)
}
