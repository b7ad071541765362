// dbcheck はリード保存用のPostgreSQLへの接続を確認し、必要ならマイグレーションを適用します。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/config"
	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/logger"
)

func main() {
	migrate := flag.Bool("migrate", false, "埋め込みのマイグレーションを適用する")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	zlog, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}
	defer zlog.Sync()

	if cfg.Database.URL == "" {
		zlog.Fatal("エラー: DATABASE_URL 環境変数が設定されていません。")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewDatabaseService(ctx, cfg.Database.URL, database.PoolOptions{MaxOpen: 1}, zlog)
	if err != nil {
		zlog.Fatal("データベースのPingに失敗しました。接続情報やネットワークを確認してください", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("成功: データベースに正常に接続し、Pingが成功しました！")

	var version string
	if err := db.DB.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		zlog.Warn("SELECT version() クエリの実行に失敗しました", zap.Error(err))
	} else {
		zlog.Info("データベースバージョン", zap.String("version", version))
	}

	if *migrate {
		if err := db.Migrate(); err != nil {
			zlog.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
	}

	leads := database.NewLeadRepository(db.DB)
	recent, err := leads.ListLeads(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		zlog.Warn("リードの取得に失敗しました。マイグレーションが未適用の可能性があります", zap.Error(err))
		return
	}
	zlog.Info("直近7日間のリード", zap.Int("count", len(recent)))
}
