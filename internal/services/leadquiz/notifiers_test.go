package leadquiz

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
)

var testLead = models.Lead{ID: "l1", Name: "Ken", Email: "ken@example.com", Score: 12, RecommendedTier: models.TierElite, Source: "ads"}

// TestEmailNotifier はSendGridのAPIに宛先と件名が送られることをテストします
func TestEmailNotifier(t *testing.T) {
	var body map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewEmailNotifier("SG.key", "Academy", "hello@academy.test", "https://academy.test/").(*EmailNotifier)
	n.host = srv.URL

	err := n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite))
	require.NoError(t, err)
	assert.Equal(t, "Bearer SG.key", auth)

	personalizations := body["personalizations"].([]interface{})
	p := personalizations[0].(map[string]interface{})
	assert.Contains(t, p["subject"], "Elite is built for you")
	to := p["to"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "ken@example.com", to["email"])
}

// TestEmailNotifier_ErrorStatus はエラーステータスが失敗になることをテストします
func TestEmailNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewEmailNotifier("bad", "Academy", "hello@academy.test", "").(*EmailNotifier)
	n.host = srv.URL

	assert.Error(t, n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite)))
}

// TestNotifierConstructors_Disabled は設定が無い場合に通知先を作らないことをテストします
func TestNotifierConstructors_Disabled(t *testing.T) {
	assert.Nil(t, NewEmailNotifier("", "Academy", "hello@academy.test", ""))
	assert.Nil(t, NewTelegramNotifier(nil, 42))
	assert.Nil(t, NewTelegramNotifier(&fakeSender{}, 0))
	assert.Nil(t, NewFunctionNotifier(&fakeInvoker{}, ""))
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

type fakeInvoker struct{}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, payload interface{}) ([]byte, error) {
	return nil, nil
}

// TestTelegramNotifier は管理者チャットにリードの概要が送られることをテストします
func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 42)

	require.NoError(t, n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite)))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "ken@example.com")
	assert.Contains(t, msg.Text, "Recommended: elite")
	assert.Contains(t, msg.Text, "Source: ads")
}

// TestTelegramNotifier_Error は送信エラーが返されることをテストします
func TestTelegramNotifier_Error(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{err: errors.New("chat not found")}, 42)
	assert.Error(t, n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite)))
}

// TestFunctionNotifier はEdge Functionにリードと推奨プランが渡されることをテストします
func TestFunctionNotifier(t *testing.T) {
	var path string
	var body struct {
		Lead           models.Lead    `json:"lead"`
		Recommendation Recommendation `json:"recommendation"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewFunctionNotifier(database.NewEdgeFunctions(srv.URL, "service-key", time.Second), "sync-lead")
	require.NoError(t, n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite)))

	assert.Equal(t, "/functions/v1/sync-lead", path)
	assert.Equal(t, testLead.Email, body.Lead.Email)
	assert.Equal(t, models.TierElite, body.Recommendation.Tier)
}

// TestFunctionNotifier_Error は関数のエラーが返されることをテストします
func TestFunctionNotifier_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewFunctionNotifier(database.NewEdgeFunctions(srv.URL, "k", time.Second), "sync-lead")
	err := n.NotifyLead(context.Background(), testLead, RecommendationFor(models.TierElite))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

// TestFunctionNotifier_Disabled は関数名が無ければ通知先にしないことをテストします
func TestFunctionNotifier_Disabled(t *testing.T) {
	assert.Nil(t, NewFunctionNotifier(database.NewEdgeFunctions("http://localhost", "k", time.Second), ""))
}
