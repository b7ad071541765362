package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/access"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/metrics"
	"github.com/trading-academy/academy-web/internal/models"
)

// loadingRetrySeconds はプロフィール解決待ちのクライアントに再試行を促す秒数です。
const loadingRetrySeconds = "2"

// Gate はアクセスゲートの判定をHTTPの応答に変換します。
type Gate struct {
	opts    []access.Option
	loading http.Handler
	logger  *zap.Logger
}

// NewGate はGateを作成します。loading はプロフィール解決中に表示するページです（nil なら簡易ページ）。
func NewGate(denyMissingProfile bool, loading http.Handler, logger *zap.Logger) *Gate {
	var opts []access.Option
	if denyMissingProfile {
		opts = append(opts, access.WithDenyMissingProfile())
	}
	if loading == nil {
		loading = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Loading your account..."))
		})
	}
	logger = applog.OrNop(logger)
	return &Gate{opts: opts, loading: loading, logger: logger.Named("gate")}
}

// Decide はリクエストの認証状態で判定し、結果をメトリクスに記録します。
func (g *Gate) Decide(r *http.Request, required *models.Tier) access.Decision {
	state := AuthStateFromContext(r.Context())
	decision := access.Evaluate(state, r.URL.RequestURI(), required, g.opts...)

	tierLabel := "none"
	if required != nil {
		tierLabel = string(*required)
	}
	metrics.GateDecisions.WithLabelValues(decision.Outcome.String(), tierLabel).Inc()
	if decision.Outcome != access.OutcomeRender {
		g.logger.Debug("access gated",
			zap.String("path", r.URL.Path),
			zap.String("outcome", decision.Outcome.String()),
			zap.String("required_tier", tierLabel),
		)
	}
	return decision
}

// Allows は一覧のロック表示や絞り込み用に、呼び出し元が required のコンテンツを見られるかを返します。
// プロフィールが無い場合の扱いはゲートの設定に従います。
func (g *Gate) Allows(r *http.Request, required models.Tier) bool {
	return access.Allows(AuthStateFromContext(r.Context()), required, g.opts...)
}

// Options はゲートと同じ判定をするための access のオプションです。
func (g *Gate) Options() []access.Option {
	return append([]access.Option(nil), g.opts...)
}

// AllowPage はページ用の判定を行い、表示できない場合はリダイレクトか読み込み中ページを書き込みます。
func (g *Gate) AllowPage(w http.ResponseWriter, r *http.Request, required *models.Tier) bool {
	d := g.Decide(r, required)
	switch d.Outcome {
	case access.OutcomeRender:
		return true
	case access.OutcomeLoading:
		w.Header().Set("Refresh", loadingRetrySeconds)
		w.Header().Set("Cache-Control", "no-store")
		g.loading.ServeHTTP(w, r)
	default:
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
	}
	return false
}

// AllowAPI はAPI用の判定を行い、許可されない場合はJSONのエラーを書き込みます。
func (g *Gate) AllowAPI(w http.ResponseWriter, r *http.Request, required *models.Tier) bool {
	d := g.Decide(r, required)
	switch d.Outcome {
	case access.OutcomeRender:
		return true
	case access.OutcomeLoading:
		w.Header().Set("Retry-After", loadingRetrySeconds)
		writeGateJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "profile is still loading",
		})
	case access.OutcomeLogin:
		writeGateJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "authentication required",
			"login": d.Redirect,
		})
	case access.OutcomeUpsell:
		writeGateJSON(w, http.StatusForbidden, map[string]string{
			"error":         "upgrade required",
			"upsell":        d.Redirect,
			"required_tier": string(d.RequiredTier),
		})
	}
	return false
}

func writeGateJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Page は required 以上のTierを持つユーザーだけにページを表示するミドルウェアです。
func (g *Gate) Page(required *models.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.AllowPage(w, r, required) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// API は required 以上のTierを持つユーザーだけにAPIを許可するミドルウェアです。
func (g *Gate) API(required *models.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.AllowAPI(w, r, required) {
				next.ServeHTTP(w, r)
			}
		})
	}
}
