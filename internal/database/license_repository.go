package database

import (
	"context"
	"fmt"

	"github.com/trading-academy/academy-web/internal/models"
)

const botLicensesTable = "bot_licenses"

// LicenseRepository はボットライセンスの読み取りを定義するインターフェースです。
type LicenseRepository interface {
	ListLicenses(ctx context.Context, userID string) ([]models.BotLicense, error)
}

type licenseRepositoryImpl struct {
	rest RestClient
}

// NewLicenseRepository はLicenseRepositoryの新しいインスタンスを作成します。
func NewLicenseRepository(rest RestClient) LicenseRepository {
	return &licenseRepositoryImpl{rest: rest}
}

func (r *licenseRepositoryImpl) ListLicenses(ctx context.Context, userID string) ([]models.BotLicense, error) {
	rows, err := query(ctx, func(dest *[]models.BotLicense) error {
		_, err := r.rest.From(botLicensesTable).
			Select("*", "", false).
			Eq("user_id", userID).
			Order("created_at", desc()).
			ExecuteTo(dest)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ライセンスの取得に失敗しました: %w", err)
	}
	return rows, nil
}
