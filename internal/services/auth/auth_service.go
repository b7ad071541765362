// Package auth はSupabase Authによるメールアドレスとパスワードのログインを扱います。
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"

	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/validation"
)

var (
	// ErrInvalidCredentials はメールアドレスかパスワードが正しくないことを表します。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnavailable はSupabase Authに到達できないか、サーバー側で失敗したことを表します。
	ErrUnavailable = errors.New("sign-in service unavailable")
)

// gotrue-go は2xx以外を "response status code <n>: <body>" のエラーで返す
var gotrueStatus = regexp.MustCompile(`response status code (\d{3})`)

// rejected は認証情報の誤りとしてGoTrueが返したエラーかどうかを判定します。
func rejected(err error) bool {
	m := gotrueStatus.FindStringSubmatch(err.Error())
	if m == nil {
		return false
	}
	switch m[1] {
	case "400", "401", "422":
		return true
	}
	return false
}

// PasswordSigner はメールアドレスとパスワードでのサインインです。gotrue.Client が満たします。
type PasswordSigner interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
}

// ProfileInvalidator はログアウト時にキャッシュ済みのプロフィールを破棄します。
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// LoginRequest はログインフォームの入力です。
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,notblank"`
}

// Session はログインで得たアクセストークンです。
type Session struct {
	AccessToken string
	ExpiresIn   time.Duration
	UserID      string
}

// Service はログインとログアウトを行います。
type Service struct {
	signer   PasswordSigner
	revoke   func(token string) error
	profiles ProfileInvalidator
	logger   *zap.Logger
}

// NewService はServiceを作成します。revoke と profiles は nil でも構いません。
func NewService(signer PasswordSigner, revoke func(token string) error, profiles ProfileInvalidator, logger *zap.Logger) *Service {
	logger = applog.OrNop(logger)
	return &Service{signer: signer, revoke: revoke, profiles: profiles, logger: logger.Named("auth")}
}

// GotrueRevoker はアクセストークンのセッションをSupabase側で終了させる関数を返します。
func GotrueRevoker(client gotrue.Client) func(token string) error {
	return func(token string) error {
		return client.WithToken(token).Logout()
	}
}

// Login は入力を検証してサインインします。
// 認証情報が拒否された場合は ErrInvalidCredentials、それ以外の失敗は ErrUnavailable を返します。
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	type result struct {
		resp *types.TokenResponse
		err  error
	}
	// gotrue-go はcontextを受け取らないので、待つ側だけキャンセルに従う
	done := make(chan result, 1)
	go func() {
		resp, err := s.signer.SignInWithEmailPassword(req.Email, req.Password)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		if rejected(res.err) {
			s.logger.Info("sign in rejected", zap.String("email", req.Email), zap.Error(res.err))
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, res.err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, res.err)
	}
	if res.resp == nil || res.resp.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}

	return &Session{
		AccessToken: res.resp.AccessToken,
		ExpiresIn:   time.Duration(res.resp.ExpiresIn) * time.Second,
		UserID:      res.resp.User.ID.String(),
	}, nil
}

// Logout はトークンを失効させ、キャッシュ済みのプロフィールを破棄します。
// どちらの失敗もログに残すだけで、Cookieの削除は呼び出し側が必ず行います。
func (s *Service) Logout(ctx context.Context, token, userID string) {
	if s.revoke != nil && token != "" {
		if err := s.revoke(token); err != nil {
			s.logger.Warn("token revoke failed", zap.Error(err))
		}
	}
	if s.profiles != nil && userID != "" {
		if err := s.profiles.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("profile cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}
