package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader は管理用APIのキーを渡すヘッダーです。
const AdminKeyHeader = "X-Admin-Key"

// AdminOnly は X-Admin-Key が一致するリクエストだけを通します。key が空なら常に拒否します。
func AdminOnly(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				writeJSONError(w, http.StatusForbidden, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
