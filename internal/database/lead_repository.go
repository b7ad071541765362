package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trading-academy/academy-web/internal/models"
)

// LeadRepository はマーケティング用リードの保存と取得を定義するインターフェースです。
type LeadRepository interface {
	SaveLead(ctx context.Context, lead models.Lead) (*models.Lead, error)
	// ListLeads は since 以降に作成されたリードを古い順に返します。
	ListLeads(ctx context.Context, since time.Time) ([]models.Lead, error)
}

// leadRepositoryImpl はLeadRepositoryインターフェースのPostgreSQL実装です。
type leadRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

// NewLeadRepository はLeadRepositoryの新しいインスタンスを作成します。
func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepositoryImpl{db: db, now: time.Now}
}

func (r *leadRepositoryImpl) SaveLead(ctx context.Context, lead models.Lead) (*models.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now().UTC()
	}
	answers := lead.Answers
	if len(answers) == 0 {
		answers = json.RawMessage(`{}`)
	}

	const q = `
		INSERT INTO leads (id, name, email, phone, answers, score, recommended_tier, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, q,
		lead.ID, lead.Name, lead.Email, lead.Phone, []byte(answers),
		lead.Score, string(lead.RecommendedTier), lead.Source, lead.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("リードの保存に失敗しました: %w", err)
	}
	lead.Answers = answers
	return &lead, nil
}

func (r *leadRepositoryImpl) ListLeads(ctx context.Context, since time.Time) ([]models.Lead, error) {
	const q = `
		SELECT id, name, email, phone, answers, score, recommended_tier, source, created_at
		FROM leads
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("リード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var (
			lead    models.Lead
			answers []byte
			tier    string
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &answers,
			&lead.Score, &tier, &lead.Source, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("リードのスキャンに失敗しました: %w", err)
		}
		lead.Answers = json.RawMessage(answers)
		lead.RecommendedTier = models.Tier(tier)
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リードのイテレーション中にエラーが発生しました: %w", err)
	}
	return leads, nil
}
