package site

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/access"
	"github.com/trading-academy/academy-web/internal/api/middleware"
	"github.com/trading-academy/academy-web/internal/database"
	applog "github.com/trading-academy/academy-web/internal/logger"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/routes"
	"github.com/trading-academy/academy-web/internal/services/auth"
	"github.com/trading-academy/academy-web/internal/services/dashboard"
	"github.com/trading-academy/academy-web/internal/services/leadquiz"
	"github.com/trading-academy/academy-web/internal/validation"
)

// PageData は全ページのテンプレートに渡すデータです。
type PageData struct {
	Title   string
	Nav     NavBar
	Footer  Footer
	User    *access.User
	Profile *models.Profile
	Content interface{}
}

// Deps はページが使うリポジトリとサービスです。
// Auth が nil の場合はログインフォームを受け付けません。Quiz が nil の場合はリードを保存せずに結果だけ表示します。
type Deps struct {
	Courses      database.CourseRepository
	Enrollments  database.EnrollmentRepository
	Licenses     database.LicenseRepository
	LiveSessions database.LiveSessionRepository
	Community    database.CommunityRepository
	Dashboard    *dashboard.Service
	Auth         *auth.Service
	Quiz         *leadquiz.Service
}

// Site はページのハンドラーをまとめたものです。
type Site struct {
	renderer *Renderer
	gate     *middleware.Gate
	deps     Deps
	cookie   CookieOptions
	logger   *zap.Logger
	now      func() time.Time
}

// CookieOptions はアクセストークンのCookieの設定です。
type CookieOptions struct {
	Name   string
	Secure bool
}

// New はSiteを作成します。
func New(renderer *Renderer, gate *middleware.Gate, deps Deps, cookie CookieOptions, logger *zap.Logger) *Site {
	logger = applog.OrNop(logger)
	if cookie.Name == "" {
		cookie.Name = "sb-access-token"
	}
	return &Site{renderer: renderer, gate: gate, deps: deps, cookie: cookie, logger: logger.Named("site"), now: time.Now}
}

func (s *Site) page(r *http.Request, title string, content interface{}) PageData {
	state := middleware.AuthStateFromContext(r.Context())
	return PageData{
		Title:   title,
		Nav:     NewNavBar(r.URL.Path, state.User != nil),
		Footer:  NewFooter(s.now()),
		User:    state.User,
		Profile: state.Profile,
		Content: content,
	}
}

// serverError はページ用の500を表示します。
func (s *Site) serverError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrNotFound) {
		s.NotFound(w, r)
		return
	}
	s.logger.Error("page failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.renderer.Render(w, http.StatusInternalServerError, "error", s.page(r, "Something went wrong", nil))
}

// NotFound は404ページを表示します。
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, http.StatusNotFound, "not_found", s.page(r, "Page not found", nil))
}

// Loading はプロフィールの解決を待つ間のプレースホルダーです。ゲートから呼ばれます。
func (s *Site) Loading(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, http.StatusOK, "loading", s.page(r, "Loading", nil))
}

type landingContent struct {
	Headline RotatingLabel
	Features []CTA
	CTA      CTA
}

// Landing はトップページです。
func (s *Site) Landing(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, http.StatusOK, "landing", s.page(r, "Trade with a plan", landingContent{
		Headline: RotatingLabel{Labels: []string{"Forex", "Crypto", "Stocks", "Indices"}, Interval: 2500 * time.Millisecond},
		Features: []CTA{
			{Heading: "Structured courses", Body: "From chart basics to risk management, one lesson at a time.", ButtonLabel: "Browse courses", ButtonHref: routes.Courses},
			{Heading: "Weekly live sessions", Body: "Review the markets with our mentors every week.", ButtonLabel: "See the schedule", ButtonHref: routes.Live},
			{Heading: "Licensed trading bots", Body: "Automate proven strategies with Elite bot licenses.", ButtonLabel: "Meet the bots", ButtonHref: routes.Bots},
		},
		CTA: CTA{Heading: "Not sure where to start?", Body: "Take the two-minute quiz and get a plan that matches your experience.", ButtonLabel: "Take the quiz", ButtonHref: routes.Quiz},
	}))
}

// About は紹介ページです。
func (s *Site) About(w http.ResponseWriter, r *http.Request) {
	s.renderer.Render(w, http.StatusOK, "about", s.page(r, "About the academy", CTA{
		Heading: "Learn with traders who trade", Body: "Join a community that shares its setups, wins and mistakes.",
		ButtonLabel: "View plans", ButtonHref: routes.Pricing,
	}))
}

// Plan は料金ページのプランです。
type Plan struct {
	Tier     models.Tier
	Price    string
	Features []string
	Required bool
}

type pricingContent struct {
	Plans    []Plan
	Required models.Tier
}

var plans = []Plan{
	{Tier: models.TierStarter, Price: "$29/mo", Features: []string{"Foundation courses", "Lesson progress tracking", "Quiz practice"}},
	{Tier: models.TierAcademy, Price: "$79/mo", Features: []string{"Full course library", "Weekly live sessions", "Trader community"}},
	{Tier: models.TierElite, Price: "$199/mo", Features: []string{"Everything in Academy", "Trading bot licenses", "Priority mentoring"}},
}

// Pricing は料金ページです。?required= が付いていれば、そのTierが必要だったことを表示します。
func (s *Site) Pricing(w http.ResponseWriter, r *http.Request) {
	content := pricingContent{Plans: make([]Plan, len(plans))}
	copy(content.Plans, plans)
	if required, err := models.ParseTier(r.URL.Query().Get(routes.RequiredParam)); err == nil {
		content.Required = required
		for i := range content.Plans {
			content.Plans[i].Required = content.Plans[i].Tier == required
		}
	}
	s.renderer.Render(w, http.StatusOK, "pricing", s.page(r, "Pricing", content))
}

type loginContent struct {
	From  string
	Email string
	Error string
}

// LoginForm はログインフォームです。?from= はログイン後の戻り先として引き継ぎます。
func (s *Site) LoginForm(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get(routes.FromParam)
	if middleware.AuthStateFromContext(r.Context()).User != nil {
		http.Redirect(w, r, routes.SafeReturnPath(from), http.StatusSeeOther)
		return
	}
	s.renderer.Render(w, http.StatusOK, "login", s.page(r, "Log in", loginContent{From: from}))
}

// Login はメールアドレスとパスワードでログインし、アクセストークンをCookieに保存します。
func (s *Site) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	content := loginContent{From: r.PostForm.Get(routes.FromParam), Email: r.PostForm.Get("email")}
	if s.deps.Auth == nil {
		content.Error = "Log in is not available right now."
		s.renderer.Render(w, http.StatusServiceUnavailable, "login", s.page(r, "Log in", content))
		return
	}

	session, err := s.deps.Auth.Login(r.Context(), auth.LoginRequest{Email: content.Email, Password: r.PostForm.Get("password")})
	if err != nil {
		var verr *validation.Error
		status := http.StatusUnauthorized
		switch {
		case errors.As(err, &verr):
			status = http.StatusBadRequest
			content.Error = "Enter your email address and password."
		case errors.Is(err, auth.ErrInvalidCredentials):
			content.Error = "That email and password combination didn't work."
		default:
			s.logger.Error("login failed", zap.Error(err))
			status = http.StatusBadGateway
			content.Error = "We couldn't reach the sign-in service. Please try again."
		}
		s.renderer.Render(w, status, "login", s.page(r, "Log in", content))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   int(session.ExpiresIn.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("signed in", zap.String("user_id", session.UserID))
	http.Redirect(w, r, routes.SafeReturnPath(content.From), http.StatusSeeOther)
}

// Logout はCookieを削除してトップページへ戻します。
func (s *Site) Logout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth != nil {
		token := ""
		if c, err := r.Cookie(s.cookie.Name); err == nil {
			token = c.Value
		}
		userID, _ := middleware.GetUserIDFromContext(r.Context())
		s.deps.Auth.Logout(r.Context(), token, userID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, routes.Home, http.StatusSeeOther)
}

type dashboardContent struct {
	Stats    *models.DashboardStats
	Progress ProgressBar
	Greeting string
}

// Dashboard はログイン中のユーザーの学習状況です。
func (s *Site) Dashboard(w http.ResponseWriter, r *http.Request) {
	state := middleware.AuthStateFromContext(r.Context())
	if state.User == nil {
		http.Redirect(w, r, routes.LoginRedirect(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	stats, err := s.deps.Dashboard.Build(r.Context(), state.User.ID, s.now())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	greeting := "Trader"
	if state.Profile != nil {
		greeting = state.Profile.DisplayName()
	}
	s.renderer.Render(w, http.StatusOK, "dashboard", s.page(r, "Dashboard", dashboardContent{
		Stats:    stats,
		Progress: ProgressBar{Ratio: stats.OverallProgress / 100},
		Greeting: greeting,
	}))
}

// courseCard はコース一覧の1件です。
type courseCard struct {
	models.CourseListItem
	Progress *ProgressBar
	// Href はロックされていなければコース詳細、ロック中なら料金ページを指します。
	Href string
}

// Courses はコース一覧です。受講中のコースには進捗バーを表示します。
func (s *Site) Courses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.Courses.ListPublishedCourses(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	progress := map[string]float64{}
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		enrollments, err := s.deps.Enrollments.ListEnrollments(r.Context(), userID)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		for _, e := range enrollments {
			progress[e.CourseID] = e.ProgressPercentage
		}
	}

	cards := make([]courseCard, 0, len(courses))
	for _, c := range courses {
		card := courseCard{
			CourseListItem: models.CourseListItem{Course: c, Locked: !s.gate.Allows(r, c.TierRequired)},
			Href:           routes.CoursePath(c.ID),
		}
		if card.Locked {
			card.Href = routes.UpsellRedirect(c.TierRequired)
		}
		if pct, ok := progress[c.ID]; ok {
			card.Progress = &ProgressBar{Ratio: pct / 100}
		}
		cards = append(cards, card)
	}
	s.renderer.Render(w, http.StatusOK, "courses", s.page(r, "Courses", cards))
}

// CourseDetail はコースの詳細です。コースのTierでゲートします。
func (s *Site) CourseDetail(w http.ResponseWriter, r *http.Request) {
	course, err := s.deps.Courses.GetCourse(r.Context(), mux.Vars(r)["courseID"])
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !s.gate.AllowPage(w, r, &course.TierRequired) {
		return
	}
	s.renderer.Render(w, http.StatusOK, "course", s.page(r, course.Title, course))
}

type botsContent struct {
	Licenses []models.BotLicense
	Now      time.Time
}

// Bots はEliteの会員が持つボットライセンスの一覧です。
func (s *Site) Bots(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	licenses, err := s.deps.Licenses.ListLicenses(r.Context(), userID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderer.Render(w, http.StatusOK, "bots", s.page(r, "Trading bots", botsContent{Licenses: licenses, Now: s.now()}))
}

// Live は今後のライブセッションです。
func (s *Site) Live(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.LiveSessions.ListUpcoming(r.Context(), s.now())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	visible := sessions[:0:0]
	for _, ls := range sessions {
		if s.gate.Allows(r, ls.TierRequired) {
			visible = append(visible, ls)
		}
	}
	s.renderer.Render(w, http.StatusOK, "live", s.page(r, "Live sessions", visible))
}

type communityContent struct {
	Posts      []models.CommunityPost
	Categories []string
	Category   string
}

var postCategories = []string{"general", "analysis", "strategies", "bots", "wins"}

// Community はコミュニティの投稿一覧です。
func (s *Site) Community(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	posts, err := s.deps.Community.ListPosts(r.Context(), category, database.DefaultPostLimit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderer.Render(w, http.StatusOK, "community", s.page(r, "Community", communityContent{
		Posts: posts, Categories: postCategories, Category: category,
	}))
}

// quizContent はクイズの1ステップ分の表示です。Contact が true なら連絡先の入力です。
type quizContent struct {
	Step     int
	Question leadquiz.Question
	Progress ProgressBar
	Answers  []hiddenAnswer
	Contact  bool
	Name     string
	Email    string
	Errors   map[string]string
}

type hiddenAnswer struct {
	Name  string
	Value string
}

const answerPrefix = "a_"

// answersFromForm は a_<設問ID> のフィールドから回答を集めます。
func answersFromForm(form map[string][]string) map[string]string {
	answers := map[string]string{}
	for key, values := range form {
		if strings.HasPrefix(key, answerPrefix) && len(values) > 0 && values[0] != "" {
			answers[strings.TrimPrefix(key, answerPrefix)] = values[0]
		}
	}
	return answers
}

func hiddenAnswers(answers map[string]string) []hiddenAnswer {
	out := make([]hiddenAnswer, 0, len(answers))
	for id, v := range answers {
		out = append(out, hiddenAnswer{Name: answerPrefix + id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Site) renderQuizStep(w http.ResponseWriter, r *http.Request, status, step int, answers map[string]string, errs map[string]string) {
	total := leadquiz.Total()
	content := quizContent{Step: step, Answers: hiddenAnswers(answers), Errors: errs}
	if step > total {
		content.Contact = true
		content.Progress = ProgressBar{Ratio: 1}
	} else {
		q, _ := leadquiz.QuestionAt(step)
		content.Question = q
		content.Progress = ProgressBar{Ratio: leadquiz.NewProgress(step-1, total).Ratio}
	}
	s.renderer.Render(w, status, "quiz", s.page(r, "Find your plan", content))
}

// QuizStart はクイズの設問を表示します。?step= で途中の設問を開けますが、
// それより前の設問の回答が a_<設問ID> で揃っていない場合は最初の設問に戻ります。
func (s *Site) QuizStart(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	step, err := strconv.Atoi(query.Get("step"))
	if err != nil || step < 1 || step > leadquiz.Total()+1 {
		s.renderQuizStep(w, r, http.StatusOK, 1, nil, nil)
		return
	}
	answers, ok := answeredBefore(step, answersFromForm(query))
	if !ok {
		step, answers = 1, nil
	}
	s.renderQuizStep(w, r, http.StatusOK, step, answers, nil)
}

// answeredBefore は step より前の設問の回答だけを返します。欠けているか不正な回答があれば false です。
func answeredBefore(step int, given map[string]string) (map[string]string, bool) {
	answers := make(map[string]string, step-1)
	for i := 1; i < step; i++ {
		q, ok := leadquiz.QuestionAt(i)
		if !ok || !validChoice(q, given[q.ID]) {
			return nil, false
		}
		answers[q.ID] = given[q.ID]
	}
	return answers, true
}

// QuizStep は現在の設問の回答を受け取り、次の設問か連絡先の入力を表示します。
func (s *Site) QuizStep(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	step, err := strconv.Atoi(r.PostForm.Get("step"))
	if err != nil {
		step = 1
	}
	answers := answersFromForm(r.PostForm)

	q, ok := leadquiz.QuestionAt(step)
	if !ok {
		http.Redirect(w, r, routes.Quiz, http.StatusSeeOther)
		return
	}
	choice := r.PostForm.Get("answer")
	if !validChoice(q, choice) {
		s.renderQuizStep(w, r, http.StatusBadRequest, step, answers, map[string]string{"answer": "Choose one of the options."})
		return
	}
	answers[q.ID] = choice
	s.renderQuizStep(w, r, http.StatusOK, step+1, answers, nil)
}

func validChoice(q leadquiz.Question, value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

type quizResultContent struct {
	Recommendation leadquiz.Recommendation
	Score          int
	CTA            CTA
}

// QuizSubmit は連絡先と全ての回答を受け取り、推奨プランを表示します。
func (s *Site) QuizSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	answers := answersFromForm(r.PostForm)
	req := models.LeadRequest{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Answers: answers,
		Source:  "quiz",
	}

	var (
		rec   leadquiz.Recommendation
		score int
	)
	if s.deps.Quiz != nil {
		submission, err := s.deps.Quiz.Submit(r.Context(), req)
		if err != nil {
			s.handleQuizError(w, r, err, answers, req)
			return
		}
		rec, score = submission.Recommendation, submission.Lead.Score
	} else {
		sc, tier, err := leadquiz.Score(answers)
		if err != nil {
			s.handleQuizError(w, r, err, answers, req)
			return
		}
		rec, score = leadquiz.RecommendationFor(tier), sc
	}

	s.renderer.Render(w, http.StatusOK, "quiz_result", s.page(r, "Your plan", quizResultContent{
		Recommendation: rec,
		Score:          score,
		CTA: CTA{
			Heading: rec.Headline, Body: rec.Summary,
			ButtonLabel: "See " + string(rec.Tier) + " plan", ButtonHref: routes.UpsellRedirect(rec.Tier),
		},
	}))
}

func (s *Site) handleQuizError(w http.ResponseWriter, r *http.Request, err error, answers map[string]string, req models.LeadRequest) {
	var verr *validation.Error
	switch {
	case errors.Is(err, leadquiz.ErrInvalidAnswers):
		http.Redirect(w, r, routes.Quiz, http.StatusSeeOther)
	case errors.As(err, &verr):
		errs := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			errs[f.Field] = f.Message
		}
		total := leadquiz.Total()
		content := quizContent{
			Step: total + 1, Contact: true, Progress: ProgressBar{Ratio: 1},
			Answers: hiddenAnswers(answers), Name: req.Name, Email: req.Email, Errors: errs,
		}
		s.renderer.Render(w, http.StatusBadRequest, "quiz", s.page(r, "Find your plan", content))
	default:
		s.serverError(w, r, err)
	}
}
