package handlers

import (
	"net/http"

	"github.com/trading-academy/academy-web/internal/api/middleware"
)

// requireUserID はコンテキストからユーザーIDを取り出します。無ければ401を書き込みます。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		WriteErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
