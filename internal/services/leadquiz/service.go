package leadquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/database"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/metrics"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/validation"
)

const notifyTimeout = 10 * time.Second

// Notifier はリード獲得後の通知先です。失敗してもリードの保存には影響しません。
type Notifier interface {
	Name() string
	NotifyLead(ctx context.Context, lead models.Lead, rec Recommendation) error
}

// Submission はリード送信の結果です。
type Submission struct {
	Lead           *models.Lead   `json:"lead"`
	Recommendation Recommendation `json:"recommendation"`
}

// Service はリード送信を処理するサービスです。
type Service struct {
	leads     database.LeadRepository
	notifiers []Notifier
	logger    *zap.Logger
}

// NewService はServiceの新しいインスタンスを作成します。nil の Notifier は無視されます。
func NewService(leads database.LeadRepository, logger *zap.Logger, notifiers ...Notifier) *Service {
	logger = applog.OrNop(logger)
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &Service{leads: leads, notifiers: active, logger: logger.Named("leadquiz")}
}

// Submit はリクエストを検証して採点し、リードを保存してから各通知先へ送ります。
// 通知の失敗はログに残すだけで、エラーとしては返しません。
func (s *Service) Submit(ctx context.Context, req models.LeadRequest) (*Submission, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	score, tier, err := Score(req.Answers)
	if err != nil {
		return nil, err
	}

	answers, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("回答のシリアライズに失敗しました: %w", err)
	}

	saved, err := s.leads.SaveLead(ctx, models.Lead{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           strings.TrimSpace(req.Phone),
		Answers:         answers,
		Score:           score,
		RecommendedTier: tier,
		Source:          req.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("リードの保存に失敗しました: %w", err)
	}
	metrics.LeadsCaptured.WithLabelValues(string(tier)).Inc()
	s.logger.Info("lead captured", zap.String("lead_id", saved.ID), zap.String("tier", string(tier)), zap.Int("score", score))

	rec := RecommendationFor(tier)
	s.notify(ctx, *saved, rec)
	return &Submission{Lead: saved, Recommendation: rec}, nil
}

func (s *Service) notify(ctx context.Context, lead models.Lead, rec Recommendation) {
	if len(s.notifiers) == 0 {
		return
	}
	// リクエストのキャンセルで通知が途切れないように切り離す
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, n := range s.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.NotifyLead(nctx, lead, rec); err != nil {
				s.logger.Warn("lead notification failed", zap.String("notifier", n.Name()), zap.String("lead_id", lead.ID), zap.Error(err))
			}
		}(n)
	}
	wg.Wait()
}
