package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQLドライバー
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PoolOptions はコネクションプールの設定です。
type PoolOptions struct {
	MaxOpen int
	MaxIdle int
}

// DatabaseService はリード保存用のPostgreSQL接続を保持します。
type DatabaseService struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewDatabaseService はPostgreSQLへの接続を作成し、Pingで疎通を確認します。
func NewDatabaseService(ctx context.Context, databaseURL string, pool PoolOptions, logger *zap.Logger) (*DatabaseService, error) {
	logger.Info("データベース接続を試行中", zap.String("url_prefix", redactURL(databaseURL)))
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	logger.Info("データベースに正常に接続しました")
	return &DatabaseService{DB: db, logger: logger}, nil
}

// Migrate は埋め込みのgooseマイグレーションを適用します。
func (s *DatabaseService) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialectの設定に失敗しました: %w", err)
	}
	if err := goose.Up(s.DB, "migrations"); err != nil {
		return fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}
	s.logger.Info("マイグレーションを適用しました")
	return nil
}

// Ping はヘルスチェック用に接続を確認します。
func (s *DatabaseService) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close は接続を閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}

// redactURL はログ用にURLの冒頭だけを残します。パスワードが含まれないよう@より前は伏せます。
func redactURL(databaseURL string) string {
	for i := len(databaseURL) - 1; i >= 0; i-- {
		if databaseURL[i] == '@' {
			databaseURL = "***" + databaseURL[i:]
			break
		}
	}
	if len(databaseURL) > 50 {
		return databaseURL[:50] + "..."
	}
	return databaseURL
}
