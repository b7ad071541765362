package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/access"
	"github.com/trading-academy/academy-web/internal/database"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/models"
)

type authStateKey struct{}

// AuthStateFromContext はコンテキストに保存された認証状態を返します。
// SessionMiddleware を通っていない場合はゼロ値（未ログイン）です。
func AuthStateFromContext(ctx context.Context) access.AuthState {
	state, _ := ctx.Value(authStateKey{}).(access.AuthState)
	return state
}

// WithAuthState は認証状態を保存したコンテキストを返します。
func WithAuthState(ctx context.Context, state access.AuthState) context.Context {
	return context.WithValue(ctx, authStateKey{}, state)
}

// GetUserIDFromContext retrieves the user ID from the context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	state := AuthStateFromContext(ctx)
	if state.User == nil || state.User.ID == "" {
		return "", false
	}
	return state.User.ID, true
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ErrInvalidToken はトークンが検証できないことを表します。
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier はSupabaseが発行したHS256のアクセストークンを検証します。
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier はTokenVerifierを作成します。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify はトークンを検証し、'sub' と 'email' クレームからユーザーを返します。
func (v *TokenVerifier) Verify(tokenString string) (*access.User, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: JWT secret missing", ErrInvalidToken)
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// アルゴリズムがHMACであることを確認
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	// SupabaseのJWTはユーザーIDを 'sub' クレームに格納します
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	return &access.User{ID: userID, Email: email}, nil
}

// SessionOptions はセッション解決の設定です。
type SessionOptions struct {
	CookieName     string
	ProfileTimeout time.Duration
	// Bypass はローカル開発用に認証を省略します。
	Bypass bool
}

// Session はリクエストのトークンから認証状態を組み立てます。
type Session struct {
	verifier *TokenVerifier
	profiles database.ProfileRepository
	opts     SessionOptions
	logger   *zap.Logger
}

// NewSession はSessionの新しいインスタンスを作成します。
func NewSession(verifier *TokenVerifier, profiles database.ProfileRepository, opts SessionOptions, logger *zap.Logger) *Session {
	if opts.CookieName == "" {
		opts.CookieName = "sb-access-token"
	}
	if opts.ProfileTimeout <= 0 {
		opts.ProfileTimeout = 3 * time.Second
	}
	logger = applog.OrNop(logger)
	return &Session{verifier: verifier, profiles: profiles, opts: opts, logger: logger.Named("session")}
}

// CookieName はアクセストークンを保存するCookieの名前です。
func (s *Session) CookieName() string {
	return s.opts.CookieName
}

// tokenFromRequest は Authorization ヘッダー、無ければCookieからトークンを取り出します。
func (s *Session) tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Resolve はリクエストの認証状態を返します。
// トークンが無いか無効なら未ログイン、プロフィールの取得が失敗またはタイムアウトしたら Loading です。
func (s *Session) Resolve(r *http.Request) access.AuthState {
	if s.opts.Bypass {
		return s.bypassState(r)
	}

	token := s.tokenFromRequest(r)
	if token == "" {
		return access.AuthState{}
	}
	user, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return access.AuthState{}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ProfileTimeout)
	defer cancel()
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	switch {
	case err == nil:
		return access.AuthState{User: user, Profile: profile}
	case errors.Is(err, database.ErrNotFound):
		return access.AuthState{User: user}
	default:
		s.logger.Warn("profile lookup failed, treating session as loading", zap.String("user_id", user.ID), zap.Error(err))
		return access.AuthState{User: user, Loading: true}
	}
}

func (s *Session) bypassState(r *http.Request) access.AuthState {
	// テスト用: ヘッダーで指定が無ければ毎回異なるユーザーとして扱う
	userID := r.Header.Get("X-Debug-User")
	if userID == "" {
		userID = uuid.New().String()
	}
	tier := models.TierElite
	if t, err := models.ParseTier(r.Header.Get("X-Debug-Tier")); err == nil {
		tier = t
	}
	return access.AuthState{
		User: &access.User{ID: userID, Email: "dev@localhost"},
		Profile: &models.Profile{
			ID:             userID,
			Email:          "dev@localhost",
			FullName:       "Local Developer",
			Tier:           tier,
			AIQueriesLimit: 100,
		},
	}
}

// SessionMiddleware は認証状態を解決してコンテキストに保存します。未ログインでも次へ進みます。
func (s *Session) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := s.Resolve(r)
		next.ServeHTTP(w, r.WithContext(WithAuthState(r.Context(), state)))
	})
}

// AuthMiddleware は有効なトークンを必須にします。無い場合は401を返します。
func (s *Session) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := AuthStateFromContext(r.Context())
		if state.User == nil {
			state = s.Resolve(r)
		}
		if state.User == nil {
			writeJSONError(w, http.StatusUnauthorized, "Authorization is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthState(r.Context(), state)))
	})
}
