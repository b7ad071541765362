package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trading-academy/academy-web/internal/database"
	"github.com/trading-academy/academy-web/internal/metrics"
	"github.com/trading-academy/academy-web/internal/models"
	"github.com/trading-academy/academy-web/internal/services/realtime"
	"github.com/trading-academy/academy-web/internal/validation"
)

// NotificationHandler は通知の一覧・既読・WebSocketでのプッシュを処理します。
type NotificationHandler struct {
	notifications database.NotificationRepository
	hub           *realtime.Hub
	upgrader      websocket.Upgrader
	logger        *zap.Logger
}

// NewNotificationHandler はNotificationHandlerの新しいインスタンスを作成します。
// allowedOrigins が空なら全てのOriginからのWebSocket接続を許可します（開発用）。
func NewNotificationHandler(notifications database.NotificationRepository, hub *realtime.Hub, allowedOrigins []string, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		hub:           hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.Named("notifications"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ListNotifications はユーザーの通知を新しい順に返します。?unread=true で未読だけにします。
// GET /api/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.notifications.ListNotifications(r.Context(), userID, unreadOnly)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, notifications)
}

// MarkRead は通知を既読にします。他人の通知は404です。
// POST /api/notifications/{notificationID}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), userID, mux.Vars(r)["notificationID"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, n)
}

// Connect はWebSocketにアップグレードし、ユーザー宛ての通知をプッシュします。
// GET /ws/notifications
func (h *NotificationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade がエラーレスポンスを書き込み済み
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.hub.Serve(userID, conn)
}

// publishResponse は管理者が作成した通知と、その場で届いた接続数です。
type publishResponse struct {
	Notification *models.Notification `json:"notification"`
	Delivered    int                  `json:"delivered"`
}

// Publish は通知を保存し、接続中のクライアントにプッシュします。
// POST /api/admin/notifications
func (h *NotificationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req models.NotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.notifications.Create(r.Context(), models.Notification{
		UserID:  req.UserID,
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
		Link:    req.Link,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	delivered := h.hub.Publish(created.UserID, *created)
	metrics.NotificationsPushed.Add(float64(delivered))
	h.logger.Info("notification published",
		zap.String("user_id", created.UserID),
		zap.String("notification_id", created.ID),
		zap.Int("delivered", delivered),
	)
	WriteJSONResponse(w, http.StatusCreated, publishResponse{Notification: created, Delivered: delivered})
}
