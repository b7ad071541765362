package site

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap/zaptest"

	"github.com/trading-academy/academy-web/internal/access"
	"github.com/trading-academy/academy-web/internal/api/middleware"
	"github.com/trading-academy/academy-web/internal/database/fakes"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/services/auth"
	"github.com/trading-academy/academy-web/internal/services/dashboard"
	"github.com/trading-academy/academy-web/internal/services/leadquiz"
)

type stubSigner struct {
	resp *types.TokenResponse
	err  error
}

func (s stubSigner) SignInWithEmailPassword(string, string) (*types.TokenResponse, error) {
	return s.resp, s.err
}

func newTestSite(t *testing.T, signer auth.PasswordSigner) (*Site, *fakes.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	renderer, err := NewRenderer(logger)
	require.NoError(t, err)

	store := fakes.NewStore()
	deps := Deps{
		Courses:      store,
		Enrollments:  store,
		Licenses:     store,
		LiveSessions: store,
		Community:    store,
		Dashboard: dashboard.NewService(dashboard.Sources{
			Profiles: store, Enrollments: store, Quizzes: store,
			Licenses: store, Notifications: store, LiveSessions: store,
		}),
		Quiz: leadquiz.NewService(store, logger),
	}
	if signer != nil {
		deps.Auth = auth.NewService(signer, nil, nil, logger)
	}
	s := New(renderer, nil, deps, CookieOptions{Name: "sb-access-token"}, logger)
	s.gate = middleware.NewGate(false, http.HandlerFunc(s.Loading), logger)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return s, store
}

func withState(r *http.Request, state access.AuthState) *http.Request {
	return r.WithContext(middleware.WithAuthState(r.Context(), state))
}

func signedIn(tier models.Tier) access.AuthState {
	return access.AuthState{
		User:    &access.User{ID: "u1", Email: "ken@example.com"},
		Profile: &models.Profile{ID: "u1", FullName: "Ken", Tier: tier},
	}
}

func postForm(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// TestNewRenderer は全てのページテンプレートが解析できることをテストします
func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	for _, page := range []string{"landing", "about", "pricing", "login", "loading", "quiz", "quiz_result",
		"dashboard", "courses", "course", "bots", "live", "community", "not_found", "error"} {
		assert.Contains(t, r.pages, page)
	}
	assert.NotContains(t, r.pages, "_base")
}

// TestLanding はナビゲーションとスクロールのしきい値が出力されることをテストします
func TestLanding(t *testing.T) {
	s, _ := newTestSite(t, nil)
	rec := httptest.NewRecorder()
	s.Landing(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-scroll-threshold="50"`)
	assert.Contains(t, body, `class="active" aria-current="page">Home`)
	assert.Contains(t, body, "Forex")
	assert.Contains(t, body, `data-interval="2500"`)
	assert.Contains(t, body, "&copy; 2026")
}

// TestPricing は required のTierでアップセルのバナーが出ることをテストします
func TestPricing(t *testing.T) {
	s, _ := newTestSite(t, nil)

	rec := httptest.NewRecorder()
	s.Pricing(rec, httptest.NewRequest(http.MethodGet, "/pricing?required=elite", nil))
	assert.Contains(t, rec.Body.String(), "<strong>Elite</strong> plan")
	assert.Contains(t, rec.Body.String(), `class="plan highlighted"`)

	rec = httptest.NewRecorder()
	s.Pricing(rec, httptest.NewRequest(http.MethodGet, "/pricing?required=vip", nil))
	assert.NotContains(t, rec.Body.String(), "banner upsell")
}

// TestLoginForm は from を引き継ぎ、ログイン済みなら戻り先へ送ることをテストします
func TestLoginForm(t *testing.T) {
	s, _ := newTestSite(t, nil)

	rec := httptest.NewRecorder()
	s.LoginForm(rec, httptest.NewRequest(http.MethodGet, "/login?from=%2Fcourses%2Fc1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="from" value="/courses/c1"`)

	rec = httptest.NewRecorder()
	s.LoginForm(rec, withState(httptest.NewRequest(http.MethodGet, "/login?from=%2F%2Fevil.example.com", nil), signedIn(models.TierStarter)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

// TestLogin はログイン成功でCookieを設定して戻り先へリダイレクトすることをテストします
func TestLogin(t *testing.T) {
	s, _ := newTestSite(t, stubSigner{resp: &types.TokenResponse{Session: types.Session{AccessToken: "jwt", ExpiresIn: 3600}}})

	rec := httptest.NewRecorder()
	s.Login(rec, postForm("/login", url.Values{"email": {"ken@example.com"}, "password": {"pw"}, "from": {"/courses/c1"}}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/courses/c1", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sb-access-token", cookies[0].Name)
	assert.Equal(t, "jwt", cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

// TestLogin_Failure はログイン失敗でフォームを再表示することをテストします
func TestLogin_Failure(t *testing.T) {
	s, _ := newTestSite(t, stubSigner{err: errors.New(`response status code 400: {"error":"invalid_grant"}`)})

	rec := httptest.NewRecorder()
	s.Login(rec, postForm("/login", url.Values{"email": {"ken@example.com"}, "password": {"bad"}, "from": {"/bots"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "combination")
	assert.Contains(t, rec.Body.String(), `value="/bots"`)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	s.Login(rec, postForm("/login", url.Values{"email": {""}, "password": {""}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled, _ := newTestSite(t, nil)
	rec = httptest.NewRecorder()
	disabled.Login(rec, postForm("/login", url.Values{"email": {"ken@example.com"}, "password": {"pw"}}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestLogin_Unavailable は認証サービスに届かない場合に502でフォームを再表示することをテストします
func TestLogin_Unavailable(t *testing.T) {
	s, _ := newTestSite(t, stubSigner{err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused")})

	rec := httptest.NewRecorder()
	s.Login(rec, postForm("/login", url.Values{"email": {"ken@example.com"}, "password": {"pw"}, "from": {"/bots"}}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "sign-in service")
	assert.Contains(t, rec.Body.String(), `value="/bots"`)
	assert.Empty(t, rec.Result().Cookies())
}

// TestLogout はCookieを削除することをテストします
func TestLogout(t *testing.T) {
	s, _ := newTestSite(t, stubSigner{})

	r := withState(httptest.NewRequest(http.MethodPost, "/logout", nil), signedIn(models.TierStarter))
	r.AddCookie(&http.Cookie{Name: "sb-access-token", Value: "jwt"})
	rec := httptest.NewRecorder()
	s.Logout(rec, r)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

// TestQuizFlow は設問を順に進めて連絡先の入力まで到達することをテストします
func TestQuizFlow(t *testing.T) {
	s, _ := newTestSite(t, nil)

	rec := httptest.NewRecorder()
	s.QuizStart(rec, httptest.NewRequest(http.MethodGet, "/quiz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "How much trading experience do you have?")
	assert.Contains(t, rec.Body.String(), `aria-valuenow="0"`)

	rec = httptest.NewRecorder()
	s.QuizStep(rec, postForm("/quiz", url.Values{"step": {"1"}, "answer": {"not-an-option"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Choose one of the options.")

	form := url.Values{}
	for i, q := range leadquiz.Questions() {
		form.Set("step", strconv.Itoa(i+1))
		form.Set("answer", q.Options[1].Value)
		rec = httptest.NewRecorder()
		s.QuizStep(rec, postForm("/quiz", form))
		require.Equal(t, http.StatusOK, rec.Code)
		form.Set("a_"+q.ID, q.Options[1].Value)
	}
	body := rec.Body.String()
	assert.Contains(t, body, "Where should we send your plan?")
	assert.Contains(t, body, `name="a_style" value="swing"`)
	assert.Contains(t, body, `aria-valuenow="100"`)
}

// TestQuizStart_Step は ?step= で途中の設問を開き、前の回答が無ければ最初に戻ることをテストします
func TestQuizStart_Step(t *testing.T) {
	s, _ := newTestSite(t, nil)

	tests := []struct {
		name   string
		target string
		want   string
		hidden []string
	}{
		{name: "回答なし", target: "/quiz?step=3", want: "Question 1"},
		{name: "数値でない", target: "/quiz?step=abc", want: "Question 1"},
		{name: "範囲外", target: "/quiz?step=99&a_experience=none", want: "Question 1"},
		{name: "不正な回答", target: "/quiz?step=3&a_experience=none&a_capital=lots", want: "Question 1"},
		{
			name:   "前の回答が揃っている",
			target: "/quiz?step=3&a_experience=beginner&a_capital=1k_10k&a_style=day",
			want:   "What is your main goal?",
			hidden: []string{`name="a_experience" value="beginner"`, `name="a_capital" value="1k_10k"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.QuizStart(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, tt.want)
			for _, h := range tt.hidden {
				assert.Contains(t, body, h)
			}
			assert.NotContains(t, body, `name="a_style"`)
		})
	}
}

// TestQuizSubmit はリードを保存して推奨プランを表示することをテストします
func TestQuizSubmit(t *testing.T) {
	s, store := newTestSite(t, nil)
	form := url.Values{
		"name": {"Aiko"}, "email": {"aiko@example.com"},
		"a_experience": {"advanced"}, "a_capital": {"over_50k"}, "a_goal": {"automate"},
		"a_time": {"over_20h"}, "a_style": {"algorithmic"},
	}

	rec := httptest.NewRecorder()
	s.QuizSubmit(rec, postForm("/quiz/submit", form))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Recommended plan: Elite")
	assert.Contains(t, rec.Body.String(), `href="/pricing?required=elite"`)
	require.Len(t, store.Leads, 1)
	assert.Equal(t, "quiz", store.Leads[0].Source)

	form.Set("email", "not-an-email")
	rec = httptest.NewRecorder()
	s.QuizSubmit(rec, postForm("/quiz/submit", form))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "form-error")
	assert.Len(t, store.Leads, 1)

	form.Set("email", "aiko@example.com")
	form.Del("a_style")
	rec = httptest.NewRecorder()
	s.QuizSubmit(rec, postForm("/quiz/submit", form))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/quiz", rec.Header().Get("Location"))
}

// TestCourses はTierが足りないコースをロック表示にすることをテストします
func TestCourses(t *testing.T) {
	s, store := newTestSite(t, nil)
	store.Courses = []models.Course{
		{ID: "c1", Title: "Basics", TierRequired: models.TierStarter, IsPublished: true},
		{ID: "c2", Title: "Bots", TierRequired: models.TierElite, IsPublished: true},
	}
	store.Enrollments = []models.Enrollment{{UserID: "u1", CourseID: "c1", ProgressPercentage: 25}}

	rec := httptest.NewRecorder()
	s.Courses(rec, withState(httptest.NewRequest(http.MethodGet, "/courses", nil), signedIn(models.TierStarter)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/courses/c1"`)
	assert.Contains(t, body, `href="/pricing?required=elite"`)
	assert.Contains(t, body, "25%")
	assert.NotContains(t, body, `href="/courses/c2"`)
}

// TestCourseDetail はコースのTierでページのゲートが働くことをテストします
func TestCourseDetail(t *testing.T) {
	s, store := newTestSite(t, nil)
	store.Courses = []models.Course{{
		ID: "c2", Title: "Bot Building", TierRequired: models.TierElite, IsPublished: true,
		Modules: []models.Module{{ID: "m1", Title: "Setup", Lessons: []models.Lesson{{ID: "l1", Title: "Install", DurationMinutes: 12}}}},
	}}

	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/courses/c2", nil), map[string]string{"courseID": "c2"})
	rec := httptest.NewRecorder()
	s.CourseDetail(rec, withState(r, signedIn(models.TierAcademy)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/pricing?required=elite", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.CourseDetail(rec, withState(r, access.AuthState{}))
	assert.Equal(t, "/login?from=%2Fcourses%2Fc2", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.CourseDetail(rec, withState(r, signedIn(models.TierElite)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Install")
	assert.Contains(t, rec.Body.String(), "1 lessons")

	missing := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/courses/zz", nil), map[string]string{"courseID": "zz"})
	rec = httptest.NewRecorder()
	s.CourseDetail(rec, withState(missing, signedIn(models.TierElite)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestCourseDetail_Loading はプロフィール解決中に読み込み中ページを表示することをテストします
func TestCourseDetail_Loading(t *testing.T) {
	s, store := newTestSite(t, nil)
	store.Courses = []models.Course{{ID: "c1", TierRequired: models.TierStarter, IsPublished: true}}

	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/courses/c1", nil), map[string]string{"courseID": "c1"})
	rec := httptest.NewRecorder()
	s.CourseDetail(rec, withState(r, access.AuthState{User: &access.User{ID: "u1"}, Loading: true}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Refresh"))
	assert.Contains(t, rec.Body.String(), "Loading your account...")
}

// TestDashboard はログイン中のユーザーの集計を表示することをテストします
func TestDashboard(t *testing.T) {
	s, store := newTestSite(t, nil)
	store.Profiles["u1"] = &models.Profile{ID: "u1", Tier: models.TierAcademy}
	store.Enrollments = []models.Enrollment{{UserID: "u1", CourseID: "c1", ProgressPercentage: 40}}

	rec := httptest.NewRecorder()
	s.Dashboard(rec, withState(httptest.NewRequest(http.MethodGet, "/dashboard", nil), signedIn(models.TierAcademy)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome back, Ken")
	assert.Contains(t, rec.Body.String(), "40%")

	rec = httptest.NewRecorder()
	s.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, "/login?from=%2Fdashboard", rec.Header().Get("Location"))
}

// TestMemberPages はボット・ライブ・コミュニティのページをテストします
func TestMemberPages(t *testing.T) {
	s, store := newTestSite(t, nil)
	store.Licenses = []models.BotLicense{{ID: "l1", UserID: "u1", BotName: "Scalper X", LicenseKey: "KEY-1", Status: models.LicenseActive}}
	store.Sessions = []models.LiveSession{
		{ID: "s1", Title: "Weekly review", Host: "Mika", ScheduledAt: s.now().Add(time.Hour), DurationMinutes: 60, TierRequired: models.TierAcademy, Status: models.LiveScheduled},
		{ID: "s2", Title: "Elite bot lab", Host: "Jun", ScheduledAt: s.now().Add(time.Hour), DurationMinutes: 60, TierRequired: models.TierElite, Status: models.LiveScheduled},
	}
	store.Posts = []models.CommunityPost{{ID: "p1", Title: "Gold breakout", AuthorName: "Aiko", Category: "analysis"}}
	state := signedIn(models.TierAcademy)

	rec := httptest.NewRecorder()
	s.Bots(rec, withState(httptest.NewRequest(http.MethodGet, "/bots", nil), state))
	assert.Contains(t, rec.Body.String(), "Scalper X")

	rec = httptest.NewRecorder()
	s.Live(rec, withState(httptest.NewRequest(http.MethodGet, "/live", nil), state))
	assert.Contains(t, rec.Body.String(), "Weekly review")
	assert.NotContains(t, rec.Body.String(), "Elite bot lab")

	rec = httptest.NewRecorder()
	s.Community(rec, withState(httptest.NewRequest(http.MethodGet, "/community?category=analysis", nil), state))
	assert.Contains(t, rec.Body.String(), "Gold breakout")
	assert.Contains(t, rec.Body.String(), `href="/community?category=analysis" class="active"`)
}

// TestMissingProfile_GateOption はプロフィールが無い会員へのロック表示とライブの絞り込みがゲートの設定に従うことをテストします
func TestMissingProfile_GateOption(t *testing.T) {
	noProfile := access.AuthState{User: &access.User{ID: "u1"}}

	for _, deny := range []bool{false, true} {
		t.Run(strconv.FormatBool(deny), func(t *testing.T) {
			s, store := newTestSite(t, nil)
			s.gate = middleware.NewGate(deny, http.HandlerFunc(s.Loading), zaptest.NewLogger(t))
			store.Courses = []models.Course{{ID: "c-bots", Title: "Bots", TierRequired: models.TierElite, IsPublished: true}}
			store.Sessions = []models.LiveSession{
				{ID: "s2", Title: "Elite bot lab", ScheduledAt: s.now().Add(time.Hour), DurationMinutes: 60, TierRequired: models.TierElite, Status: models.LiveScheduled},
			}

			rec := httptest.NewRecorder()
			s.Courses(rec, withState(httptest.NewRequest(http.MethodGet, "/courses", nil), noProfile))
			require.Equal(t, http.StatusOK, rec.Code)
			if deny {
				assert.Contains(t, rec.Body.String(), `href="/pricing?required=elite"`)
				assert.NotContains(t, rec.Body.String(), `href="/courses/c-bots"`)
			} else {
				assert.Contains(t, rec.Body.String(), `href="/courses/c-bots"`)
			}

			rec = httptest.NewRecorder()
			s.Live(rec, withState(httptest.NewRequest(http.MethodGet, "/live", nil), noProfile))
			require.Equal(t, http.StatusOK, rec.Code)
			if deny {
				assert.NotContains(t, rec.Body.String(), "Elite bot lab")
			} else {
				assert.Contains(t, rec.Body.String(), "Elite bot lab")
			}
		})
	}
}

// TestStaticHandler は埋め込みのCSSを配信することをテストします
func TestStaticHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".navbar.scrolled")
}
