package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/api/middleware"
	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/services/dashboard"
	"github.com/trading-academy/academy-web/internal/validation"
)

// MemberRepositories はMemberHandlerが使うリポジトリです。
type MemberRepositories struct {
	Profiles     database.ProfileRepository
	Quizzes      database.QuizRepository
	Licenses     database.LicenseRepository
	LiveSessions database.LiveSessionRepository
	Community    database.CommunityRepository
}

// MemberHandler は会員向けのプロフィール・ダッシュボード・学習記録のAPIを処理します。
type MemberHandler struct {
	repos     MemberRepositories
	dashboard *dashboard.Service
	gate      *middleware.Gate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMemberHandler はMemberHandlerの新しいインスタンスを作成します。
// gate はライブセッションをTierで絞り込むのに使います。
func NewMemberHandler(repos MemberRepositories, dash *dashboard.Service, gate *middleware.Gate, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{repos: repos, dashboard: dash, gate: gate, logger: logger.Named("member"), now: time.Now}
}

// GetProfile はログイン中のユーザーのプロフィールを返します。
// GET /api/profile
func (h *MemberHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if profile := middleware.AuthStateFromContext(r.Context()).Profile; profile != nil {
		WriteJSONResponse(w, http.StatusOK, profile)
		return
	}
	profile, err := h.repos.Profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, profile)
}

// queryUsageResponse はAIクエリ消費後の残数です。
type queryUsageResponse struct {
	Used      int `json:"ai_queries_used"`
	Limit     int `json:"ai_queries_limit"`
	Remaining int `json:"remaining"`
}

// ConsumeQuery はAIクエリを1回分消費します。上限に達している場合は429です。
// POST /api/profile/queries
func (h *MemberHandler) ConsumeQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	profile, err := h.repos.Profiles.IncrementQueryUsage(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrQuotaExceeded) {
			h.logger.Info("AI query quota exhausted", zap.String("user_id", userID))
		}
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, queryUsageResponse{
		Used:      profile.AIQueriesUsed,
		Limit:     profile.AIQueriesLimit,
		Remaining: profile.RemainingQueries(),
	})
}

// GetDashboard はダッシュボードの集計を返します。
// GET /api/dashboard
func (h *MemberHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.dashboard.Build(r.Context(), userID, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, stats)
}

// RecordAttempt はクイズの受験結果を記録します。
// POST /api/quizzes/{quizID}/attempts
func (h *MemberHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req models.QuizAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	attempt, err := h.repos.Quizzes.RecordAttempt(r.Context(), models.QuizAttempt{
		UserID:  userID,
		QuizID:  mux.Vars(r)["quizID"],
		Score:   req.Score,
		Passed:  req.Passed,
		Answers: req.Answers,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, attempt)
}

// ListAttempts はユーザーのクイズ受験履歴を返します。
// GET /api/quizzes/attempts
func (h *MemberHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	attempts, err := h.repos.Quizzes.ListAttempts(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, attempts)
}

// licenseView はライセンスに現在有効かどうかを付けたものです。
type licenseView struct {
	models.BotLicense
	Active bool `json:"active"`
}

// ListLicenses はユーザーのボットライセンスを返します。
// GET /api/licenses
func (h *MemberHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	licenses, err := h.repos.Licenses.ListLicenses(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	now := h.now()
	views := make([]licenseView, 0, len(licenses))
	for _, l := range licenses {
		views = append(views, licenseView{BotLicense: l, Active: l.ActiveAt(now)})
	}
	WriteJSONResponse(w, http.StatusOK, views)
}

// ListLiveSessions はユーザーのTierで参加できる今後のライブセッションを返します。
// GET /api/live-sessions
func (h *MemberHandler) ListLiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repos.LiveSessions.ListUpcoming(r.Context(), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	visible := make([]models.LiveSession, 0, len(sessions))
	for _, s := range sessions {
		if h.gate.Allows(r, s.TierRequired) {
			visible = append(visible, s)
		}
	}
	WriteJSONResponse(w, http.StatusOK, visible)
}

// ListPosts はコミュニティの投稿を返します。?category= と ?limit= で絞り込めます。
// GET /api/community/posts
func (h *MemberHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	posts, err := h.repos.Community.ListPosts(r.Context(), q.Get("category"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, posts)
}

// CreatePost はコミュニティに投稿します。投稿者名はプロフィールの表示名です。
// POST /api/community/posts
func (h *MemberHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req models.CommunityPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	author := "Trader"
	if profile := middleware.AuthStateFromContext(r.Context()).Profile; profile != nil {
		author = profile.DisplayName()
	}
	post, err := h.repos.Community.CreatePost(r.Context(), models.CommunityPost{
		UserID:     userID,
		AuthorName: author,
		Title:      req.Title,
		Content:    req.Content,
		Category:   req.Category,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, post)
}
