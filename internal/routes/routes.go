// Package routes はリダイレクト先として使う固定パスをまとめたものです。
package routes

import (
	"net/url"
	"strings"

	"github.com/trading-academy/academy-web/internal/models"
)

const (
	Home      = "/"
	About     = "/about"
	Pricing   = "/pricing"
	Quiz      = "/quiz"
	Login     = "/login"
	Logout    = "/logout"
	Dashboard = "/dashboard"
	Courses   = "/courses"
	Bots      = "/bots"
	Live      = "/live"
	Community = "/community"

	// FromParam はログイン後に戻る場所を運ぶクエリパラメータ名です。
	FromParam = "from"
	// RequiredParam はアップセルページに必要なTierを伝えるクエリパラメータ名です。
	RequiredParam = "required"
)

// LoginRedirect は元の場所を付けたログインパスを返します。
func LoginRedirect(from string) string {
	if from == "" {
		return Login
	}
	return Login + "?" + url.Values{FromParam: {from}}.Encode()
}

// UpsellRedirect は必要なTierを付けた料金ページのパスを返します。
func UpsellRedirect(required models.Tier) string {
	if !required.Valid() {
		return Pricing
	}
	return Pricing + "?" + url.Values{RequiredParam: {string(required)}}.Encode()
}

// SafeReturnPath はログイン後の戻り先として同一サイトの絶対パスだけを許可します。
// それ以外はダッシュボードに戻します。
func SafeReturnPath(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return Dashboard
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return Dashboard
	}
	if u.Path == Login || u.Path == Logout {
		return Dashboard
	}
	return from
}

// CoursePath はコース詳細ページのパスを返します。
func CoursePath(courseID string) string {
	return Courses + "/" + url.PathEscape(courseID)
}
