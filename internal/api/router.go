// Package api はHTTPルーティングを組み立てます。
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/api/handlers"
	"github.com/trading-academy/academy-web/internal/api/middleware"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/routes"
	"github.com/trading-academy/academy-web/internal/site"
)

// Dependencies はルーターに渡すハンドラーとミドルウェアです。
type Dependencies struct {
	Session       *middleware.Session
	Gate          *middleware.Gate
	Site          *site.Site
	Courses       *handlers.CourseHandler
	Members       *handlers.MemberHandler
	Notifications *handlers.NotificationHandler
	Leads         *handlers.LeadHandler

	AdminKey       string
	AllowedOrigins []string
	// Ping はリード保存用DBの疎通確認です。nil ならチェックしません。
	Ping   func(ctx context.Context) error
	Logger *zap.Logger
}

func tier(t models.Tier) *models.Tier { return &t }

// NewRouter は全ルートを登録したハンドラーを返します。
func NewRouter(d Dependencies) http.Handler {
	logger := applog.OrNop(d.Logger)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))

	// 認証不要な公開エンドポイント
	r.HandleFunc("/health", healthHandler(d.Ping)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(site.StaticHandler())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quiz", d.Leads.GetQuiz).Methods(http.MethodGet)
	api.HandleFunc("/leads", d.Leads.SubmitLead).Methods(http.MethodPost)

	// 管理用のエンドポイント
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly(d.AdminKey))
	admin.HandleFunc("/leads/export", d.Leads.ExportLeads).Methods(http.MethodGet)
	admin.HandleFunc("/notifications", d.Notifications.Publish).Methods(http.MethodPost)

	// ログインが必要なエンドポイント
	member := api.NewRoute().Subrouter()
	member.Use(d.Session.SessionMiddleware, d.Gate.API(nil))
	member.HandleFunc("/profile", d.Members.GetProfile).Methods(http.MethodGet)
	member.HandleFunc("/profile/queries", d.Members.ConsumeQuery).Methods(http.MethodPost)
	member.HandleFunc("/dashboard", d.Members.GetDashboard).Methods(http.MethodGet)
	member.HandleFunc("/courses", d.Courses.ListCourses).Methods(http.MethodGet)
	member.HandleFunc("/courses/{courseID}", d.Courses.GetCourse).Methods(http.MethodGet)
	member.HandleFunc("/courses/{courseID}/enroll", d.Courses.Enroll).Methods(http.MethodPost)
	member.HandleFunc("/lessons/{lessonID}", d.Courses.GetLesson).Methods(http.MethodGet)
	member.HandleFunc("/lessons/{lessonID}/progress", d.Courses.SaveProgress).Methods(http.MethodPost)
	member.HandleFunc("/enrollments", d.Courses.ListEnrollments).Methods(http.MethodGet)
	member.HandleFunc("/quizzes/attempts", d.Members.ListAttempts).Methods(http.MethodGet)
	member.HandleFunc("/quizzes/{quizID}/attempts", d.Members.RecordAttempt).Methods(http.MethodPost)
	member.Handle("/licenses", d.Gate.API(tier(models.TierElite))(http.HandlerFunc(d.Members.ListLicenses))).Methods(http.MethodGet)
	member.Handle("/live-sessions", d.Gate.API(tier(models.TierAcademy))(http.HandlerFunc(d.Members.ListLiveSessions))).Methods(http.MethodGet)
	community := d.Gate.API(tier(models.TierAcademy))
	member.Handle("/community/posts", community(http.HandlerFunc(d.Members.ListPosts))).Methods(http.MethodGet)
	member.Handle("/community/posts", community(http.HandlerFunc(d.Members.CreatePost))).Methods(http.MethodPost)
	member.HandleFunc("/notifications", d.Notifications.ListNotifications).Methods(http.MethodGet)
	member.HandleFunc("/notifications/{notificationID}/read", d.Notifications.MarkRead).Methods(http.MethodPost)

	// WebSocketは未ログインなら401だけを返す
	r.Handle("/ws/notifications", d.Session.AuthMiddleware(d.Gate.API(nil)(http.HandlerFunc(d.Notifications.Connect)))).Methods(http.MethodGet)

	// ページ
	pages := r.NewRoute().Subrouter()
	pages.Use(d.Session.SessionMiddleware)
	pages.HandleFunc(routes.Home, d.Site.Landing).Methods(http.MethodGet)
	pages.HandleFunc(routes.About, d.Site.About).Methods(http.MethodGet)
	pages.HandleFunc(routes.Pricing, d.Site.Pricing).Methods(http.MethodGet)
	pages.HandleFunc(routes.Quiz, d.Site.QuizStart).Methods(http.MethodGet)
	pages.HandleFunc(routes.Quiz, d.Site.QuizStep).Methods(http.MethodPost)
	pages.HandleFunc(routes.Quiz+"/submit", d.Site.QuizSubmit).Methods(http.MethodPost)
	pages.HandleFunc(routes.Login, d.Site.LoginForm).Methods(http.MethodGet)
	pages.HandleFunc(routes.Login, d.Site.Login).Methods(http.MethodPost)
	pages.HandleFunc(routes.Logout, d.Site.Logout).Methods(http.MethodPost)

	signedIn := d.Gate.Page(nil)
	pages.Handle(routes.Dashboard, signedIn(http.HandlerFunc(d.Site.Dashboard))).Methods(http.MethodGet)
	pages.Handle(routes.Courses, signedIn(http.HandlerFunc(d.Site.Courses))).Methods(http.MethodGet)
	pages.HandleFunc(routes.Courses+"/{courseID}", d.Site.CourseDetail).Methods(http.MethodGet)
	pages.Handle(routes.Bots, d.Gate.Page(tier(models.TierElite))(http.HandlerFunc(d.Site.Bots))).Methods(http.MethodGet)
	pages.Handle(routes.Live, d.Gate.Page(tier(models.TierAcademy))(http.HandlerFunc(d.Site.Live))).Methods(http.MethodGet)
	pages.Handle(routes.Community, d.Gate.Page(tier(models.TierAcademy))(http.HandlerFunc(d.Site.Community))).Methods(http.MethodGet)

	r.NotFoundHandler = notFoundHandler(d.Session, d.Site)

	return middleware.CORSHandler(d.AllowedOrigins)(r)
}

// notFoundHandler は /api 配下ではJSON、それ以外では404ページを返します。
func notFoundHandler(session *middleware.Session, pages *site.Site) http.Handler {
	page := session.SessionMiddleware(http.HandlerFunc(pages.NotFound))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			handlers.WriteErrorResponse(w, http.StatusNotFound, "Not found")
			return
		}
		page.ServeHTTP(w, r)
	})
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				handlers.WriteJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
				return
			}
		}
		handlers.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
