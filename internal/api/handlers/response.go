package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/services/auth"
	"github.com/trading-academy/academy-web/internal/services/leadquiz"
	"github.com/trading-academy/academy-web/internal/validation"
)

// maxBodyBytes はリクエストボディの上限です。
const maxBodyBytes = 1 << 20

// WriteErrorResponse はエラーレスポンスを書き込みます。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSONResponse(w, statusCode, map[string]string{"error": message})
}

// WriteJSONResponse はJSONレスポンスを書き込みます。
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// validationResponse は検証エラーのレスポンスです。
type validationResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields"`
}

// writeError はエラーの種類に応じたステータスでレスポンスを書き込みます。
// 想定外のエラーは詳細を隠して500にします。
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		WriteJSONResponse(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, leadquiz.ErrInvalidAnswers):
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		WriteErrorResponse(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrUnavailable):
		logger.Warn("sign-in backend failed", zap.Error(err))
		WriteErrorResponse(w, http.StatusBadGateway, "sign-in service unavailable")
	case errors.Is(err, database.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrQuotaExceeded):
		WriteErrorResponse(w, http.StatusTooManyRequests, "AI query limit reached")
	case errors.Is(err, database.ErrConflict):
		WriteErrorResponse(w, http.StatusConflict, "the record was changed concurrently, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("backend timed out", zap.Error(err))
		WriteErrorResponse(w, http.StatusGatewayTimeout, "backend timed out")
	case errors.Is(err, context.Canceled):
		// クライアントが切断済み
	default:
		logger.Error("request failed", zap.Error(err))
		WriteErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON はボディをJSONとして読み込みます。失敗した場合は400を書き込んで false を返します。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			WriteErrorResponse(w, http.StatusBadRequest, "request body is required")
			return false
		}
		WriteErrorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
