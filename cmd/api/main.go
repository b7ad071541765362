package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/api"
	"github.com/trading-academy/academy-web/internal/api/handlers"
	"github.com/trading-academy/academy-web/internal/api/middleware"
	"github.com/trading-academy/academy-web/internal/cache"
	"github.com/trading-academy/academy-web/internal/config"
	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/services/auth"
	"github.com/trading-academy/academy-web/internal/services/dashboard"
	"github.com/trading-academy/academy-web/internal/services/leadquiz"
	"github.com/trading-academy/academy-web/internal/services/realtime"
	"github.com/trading-academy/academy-web/internal/site"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	client, err := database.NewSupabaseClient(cfg.Supabase.URL, cfg.SupabaseKey())
	if err != nil {
		return err
	}

	thumbnails := database.NewStorageThumbnails(client.Storage, cfg.Supabase.ThumbnailBucket)
	courses := database.NewCourseRepository(client, thumbnails)
	enrollments := database.NewEnrollmentRepository(client)
	quizzes := database.NewQuizRepository(client)
	licenses := database.NewLicenseRepository(client)
	liveSessions := database.NewLiveSessionRepository(client)
	community := database.NewCommunityRepository(client)
	notifications := database.NewNotificationRepository(client)

	profiles := cache.Passthrough(database.NewProfileRepository(client))
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zlog.Warn("Redisに接続できないためプロフィールキャッシュを無効にします", zap.Error(err))
		} else {
			defer rdb.Close()
			profiles = cache.NewCachedProfileRepository(database.NewProfileRepository(client), rdb, cfg.Redis.ProfileTTL, zlog)
		}
	}

	// リードの保存先はSupabaseとは別のPostgreSQL
	var (
		leads database.LeadRepository
		quiz  *leadquiz.Service
		ping  func(context.Context) error
	)
	if cfg.Database.URL != "" {
		db, err := database.NewDatabaseService(ctx, cfg.Database.URL, database.PoolOptions{
			MaxOpen: cfg.Database.MaxConnections,
			MaxIdle: cfg.Database.MaxIdle,
		}, zlog)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.Migrate(); err != nil {
				return err
			}
		}
		leads = database.NewLeadRepository(db.DB)
		quiz = leadquiz.NewService(leads, zlog, leadNotifiers(cfg, zlog)...)
		ping = db.Ping
	} else {
		zlog.Warn("database.url が未設定のためリードは保存されません")
	}

	hub := realtime.NewHub(zlog)
	defer hub.Shutdown()

	var pages *site.Site
	gate := middleware.NewGate(cfg.Access.DenyWithoutProfile, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Loading(w, r)
	}), zlog)
	dash := dashboard.NewService(dashboard.Sources{
		Profiles:      profiles,
		Enrollments:   enrollments,
		Quizzes:       quizzes,
		Licenses:      licenses,
		Notifications: notifications,
		LiveSessions:  liveSessions,
	}, gate.Options()...)
	authService := auth.NewService(client.Auth, auth.GotrueRevoker(client.Auth), profiles, zlog)

	if cfg.Auth.Bypass {
		zlog.Warn("認証をバイパスしています。本番では使用しないでください")
	}
	session := middleware.NewSession(middleware.NewTokenVerifier(cfg.Supabase.JWTSecret), profiles, middleware.SessionOptions{
		CookieName:     cfg.Auth.CookieName,
		ProfileTimeout: cfg.Auth.ProfileTimeout,
		Bypass:         cfg.Auth.Bypass,
	}, zlog)

	renderer, err := site.NewRenderer(zlog)
	if err != nil {
		return err
	}
	pages = site.New(renderer, gate, site.Deps{
		Courses:      courses,
		Enrollments:  enrollments,
		Licenses:     licenses,
		LiveSessions: liveSessions,
		Community:    community,
		Dashboard:    dash,
		Auth:         authService,
		Quiz:         quiz,
	}, site.CookieOptions{Name: cfg.Auth.CookieName, Secure: cfg.App.IsProduction()}, zlog)

	router := api.NewRouter(api.Dependencies{
		Session: session,
		Gate:    gate,
		Site:    pages,
		Courses: handlers.NewCourseHandler(courses, enrollments, gate, zlog),
		Members: handlers.NewMemberHandler(handlers.MemberRepositories{
			Profiles:     profiles,
			Quizzes:      quizzes,
			Licenses:     licenses,
			LiveSessions: liveSessions,
			Community:    community,
		}, dash, gate, zlog),
		Notifications:  handlers.NewNotificationHandler(notifications, hub, cfg.CORS.AllowedOrigins, zlog),
		Leads:          handlers.NewLeadHandler(quiz, leads, zlog),
		AdminKey:       cfg.App.AdminKey,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Ping:           ping,
		Logger:         zlog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("Server starting", zap.String("addr", srv.Addr), zap.String("base_url", cfg.App.BaseURL), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("シャットダウンしています")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// leadNotifiers は設定済みの通知先だけを返します。
func leadNotifiers(cfg *config.Config, zlog *zap.Logger) []leadquiz.Notifier {
	var out []leadquiz.Notifier
	add := func(n leadquiz.Notifier) {
		if n != nil {
			out = append(out, n)
		}
	}

	add(leadquiz.NewEmailNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromName, cfg.SendGrid.FromEmail, cfg.App.BaseURL))
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			zlog.Warn("Telegram botの初期化に失敗しました", zap.Error(err))
		} else {
			add(leadquiz.NewTelegramNotifier(bot, cfg.Telegram.AdminChatID))
		}
	}
	add(leadquiz.NewFunctionNotifier(database.NewEdgeFunctions(cfg.Supabase.URL, cfg.SupabaseKey(), 10*time.Second), cfg.Supabase.LeadFunction))
	return out
}
