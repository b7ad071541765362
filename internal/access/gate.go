// Package access はTierに基づくルートガード（アクセスゲート）を実装します。
//
// 判定は AuthState を明示的に受け取る純粋関数で、キャッシュや永続化は行いません。
// リクエストごとに評価されます。
package access

import (
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/routes"
)

// User は認証済みユーザーです。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AuthState は呼び出し側の認証状態です。
type AuthState struct {
	User    *User
	Profile *models.Profile
	// Loading はプロフィールの解決が終わっていないことを表します。
	Loading bool
}

// Tier はプロフィールのTierを返します。プロフィールが無い場合は false を返します。
func (s AuthState) Tier() (models.Tier, bool) {
	if s.Profile == nil {
		return "", false
	}
	return s.Profile.Tier, true
}

// Outcome はゲートの判定結果の種類です。
type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeLoading
	OutcomeLogin
	OutcomeUpsell
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeLoading:
		return "loading"
	case OutcomeLogin:
		return "login"
	case OutcomeUpsell:
		return "upsell"
	default:
		return "unknown"
	}
}

// Decision はゲートの判定です。Redirect は OutcomeLogin と OutcomeUpsell の時だけ設定されます。
type Decision struct {
	Outcome      Outcome
	Redirect     string
	RequiredTier models.Tier
}

type options struct {
	denyMissingProfile bool
}

// Option は判定の挙動を変更します。
type Option func(*options)

// WithDenyMissingProfile は必要Tierが指定されているのにプロフィールが無い場合、
// 許可ではなくアップセルへリダイレクトさせます。
func WithDenyMissingProfile() Option {
	return func(o *options) { o.denyMissingProfile = true }
}

// Require は必要Tierへのポインタを返すヘルパーです。
func Require(t models.Tier) *models.Tier {
	return &t
}

// Evaluate は認証状態と必要Tierからゲートの判定を返します。
//
// location はログイン後に戻るための現在の場所（パス＋クエリ）です。
// required が nil の場合はログインしていれば誰でも表示できます。
//
// 既定では、必要Tierが指定されていてもプロフィールが未取得なら表示を許可します。
// これは既知の認可の穴であり、WithDenyMissingProfile で拒否に切り替えられます。
func Evaluate(state AuthState, location string, required *models.Tier, opts ...Option) Decision {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if state.Loading {
		return Decision{Outcome: OutcomeLoading}
	}

	if state.User == nil {
		return Decision{Outcome: OutcomeLogin, Redirect: routes.LoginRedirect(location)}
	}

	if required != nil && !o.allows(state, *required) {
		return Decision{Outcome: OutcomeUpsell, Redirect: routes.UpsellRedirect(*required), RequiredTier: *required}
	}

	return Decision{Outcome: OutcomeRender}
}

// Allows は state のTierで required のコンテンツを見られるかを返します。
// 一覧のロック表示や絞り込みに使い、Evaluate のTier判定と同じ規則に従います。
// required が既知のTierでなければ制限なしとして扱います。
func Allows(state AuthState, required models.Tier, opts ...Option) bool {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o.allows(state, required)
}

func (o options) allows(state AuthState, required models.Tier) bool {
	if !required.Valid() {
		return true
	}
	tier, ok := state.Tier()
	if !ok {
		return !o.denyMissingProfile
	}
	return tier.AtLeast(required)
}
