// Package site はサーバーサイドでレンダリングするページと、その表示用コンポーネントを提供します。
package site

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/trading-academy/academy-web/internal/routes"
)

// DefaultScrollThreshold はナビゲーションバーのスタイルを切り替えるスクロール量(px)です。
const DefaultScrollThreshold = 50

// NavLink はナビゲーションのリンクです。
type NavLink struct {
	Label  string
	Href   string
	Active bool
}

// NavBar は全ページ共通のナビゲーションバーです。
type NavBar struct {
	Links           []NavLink
	Active          string
	ScrollThreshold int
	MenuOpen        bool
	SignedIn        bool
}

var publicLinks = []NavLink{
	{Label: "Home", Href: routes.Home},
	{Label: "About", Href: routes.About},
	{Label: "Pricing", Href: routes.Pricing},
	{Label: "Free Quiz", Href: routes.Quiz},
}

var memberLinks = []NavLink{
	{Label: "Dashboard", Href: routes.Dashboard},
	{Label: "Courses", Href: routes.Courses},
	{Label: "Bots", Href: routes.Bots},
	{Label: "Live", Href: routes.Live},
	{Label: "Community", Href: routes.Community},
}

// NewNavBar は現在のパスに合わせてアクティブなリンクを付けたNavBarを返します。
func NewNavBar(path string, signedIn bool) NavBar {
	src := publicLinks
	if signedIn {
		src = memberLinks
	}
	links := make([]NavLink, len(src))
	active := ""
	for i, l := range src {
		l.Active = isActive(path, l.Href)
		if l.Active {
			active = l.Href
		}
		links[i] = l
	}
	return NavBar{Links: links, Active: active, ScrollThreshold: DefaultScrollThreshold, SignedIn: signedIn}
}

// isActive は path が href 自身か、その配下であれば true を返します。"/" は完全一致のみです。
func isActive(path, href string) bool {
	if href == routes.Home {
		return path == routes.Home
	}
	return path == href || strings.HasPrefix(path, href+"/")
}

// FooterColumn はフッターの列です。
type FooterColumn struct {
	Title string
	Links []NavLink
}

// Footer は全ページ共通のフッターです。
type Footer struct {
	Year    int
	Columns []FooterColumn
}

// NewFooter は now の年を表示するFooterを返します。
func NewFooter(now time.Time) Footer {
	return Footer{
		Year: now.Year(),
		Columns: []FooterColumn{
			{Title: "Academy", Links: []NavLink{
				{Label: "About", Href: routes.About},
				{Label: "Pricing", Href: routes.Pricing},
				{Label: "Free Quiz", Href: routes.Quiz},
			}},
			{Title: "Members", Links: []NavLink{
				{Label: "Log in", Href: routes.Login},
				{Label: "Courses", Href: routes.Courses},
				{Label: "Community", Href: routes.Community},
			}},
		},
	}
}

// ProgressBar は 0〜1 の割合を表示する進捗バーです。
type ProgressBar struct {
	Ratio float64
}

// Percent は割合を [0,100] に丸めた百分率です。
func (p ProgressBar) Percent() int {
	if math.IsNaN(p.Ratio) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(1, p.Ratio)) * 100))
}

// Label は "40%" の形式の表示です。
func (p ProgressBar) Label() string {
	return fmt.Sprintf("%d%%", p.Percent())
}

// CTA はページ末尾などに置く行動喚起のブロックです。
type CTA struct {
	Heading     string
	Body        string
	ButtonLabel string
	ButtonHref  string
}

// RotatingLabel は一定間隔で切り替わる見出しの文言です。
type RotatingLabel struct {
	Labels   []string
	Interval time.Duration
}

// At は経過時間 elapsed の時点で表示する文言を返します。
func (l RotatingLabel) At(elapsed time.Duration) string {
	if len(l.Labels) == 0 {
		return ""
	}
	if l.Interval <= 0 || elapsed < 0 {
		return l.Labels[0]
	}
	return l.Labels[int(elapsed/l.Interval)%len(l.Labels)]
}

// IntervalMillis はクライアントのスクリプトに渡す切り替え間隔(ms)です。
func (l RotatingLabel) IntervalMillis() int64 {
	return l.Interval.Milliseconds()
}
