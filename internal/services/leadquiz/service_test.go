package leadquiz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/trading-academy/academy-web/internal/database/fakes"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/validation"
)

type recordingNotifier struct {
	name string
	err  error
	mu   sync.Mutex
	got  []models.Lead
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) NotifyLead(_ context.Context, lead models.Lead, _ Recommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, lead)
	return r.err
}

func validRequest() models.LeadRequest {
	return models.LeadRequest{
		Name:    "  Aya ",
		Email:   "Aya@Example.com",
		Answers: answersWith("intermediate", "10k_50k", "full_time", "10_20h", "day"),
		Source:  "landing",
	}
}

// TestSubmit はリードが保存され、通知の失敗が結果に影響しないことをテストします
func TestSubmit(t *testing.T) {
	store := fakes.NewStore()
	ok := &recordingNotifier{name: "ok"}
	failing := &recordingNotifier{name: "failing", err: errors.New("smtp down")}
	svc := NewService(store, zaptest.NewLogger(t), ok, nil, failing)

	sub, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "Aya", sub.Lead.Name)
	assert.Equal(t, "aya@example.com", sub.Lead.Email)
	assert.Equal(t, 10, sub.Lead.Score)
	assert.Equal(t, models.TierAcademy, sub.Lead.RecommendedTier)
	assert.Equal(t, models.TierAcademy, sub.Recommendation.Tier)
	assert.JSONEq(t, `{"experience":"intermediate","capital":"10k_50k","goal":"full_time","time":"10_20h","style":"day"}`, string(sub.Lead.Answers))

	require.Len(t, store.Leads, 1)
	assert.Len(t, ok.got, 1)
	assert.Len(t, failing.got, 1)
}

// TestSubmit_ValidationError は不正なメールアドレスが検証エラーになることをテストします
func TestSubmit_ValidationError(t *testing.T) {
	store := fakes.NewStore()
	req := validRequest()
	req.Email = "nope"

	_, err := NewService(store, nil).Submit(context.Background(), req)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Empty(t, store.Leads)
}

// TestSubmit_InvalidAnswers は未回答があると保存しないことをテストします
func TestSubmit_InvalidAnswers(t *testing.T) {
	store := fakes.NewStore()
	req := validRequest()
	delete(req.Answers, "style")

	_, err := NewService(store, nil).Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidAnswers)
	assert.Empty(t, store.Leads)
}

// TestSubmit_StoreError は保存に失敗した場合に通知しないことをテストします
func TestSubmit_StoreError(t *testing.T) {
	store := fakes.NewStore()
	store.Err = errors.New("db down")
	n := &recordingNotifier{name: "n"}

	_, err := NewService(store, nil, n).Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, store.Err)
	assert.Empty(t, n.got)
}
