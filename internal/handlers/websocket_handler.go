package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rentflow/internal/middleware"
	"rentflow/internal/services"
	"rentflow/pkg/logger"
	"rentflow/pkg/queue"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 300 * time.Second
	wsPingInterval = 60 * time.Second
)

// wsMessage 推送给客户端的消息
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketHandler 站内通知实时推送
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	queue         *queue.RedisQueue
	auth          *middleware.AuthMiddleware
	notifications *services.NotificationService
	log           *logrus.Logger
}

// NewWebSocketHandler q 为 nil 时不提供实时推送
func NewWebSocketHandler(q *queue.RedisQueue, auth *middleware.AuthMiddleware, notifications *services.NotificationService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 同源请求没有 Origin
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || matchOrigin(origin, allowed) {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 32,
		},
		queue:         q,
		auth:          auth,
		notifications: notifications,
		log:           logger.GetLogger(),
	}
}

// Notifications 订阅当前用户的通知频道并转发给客户端
func (h *WebSocketHandler) Notifications(c *gin.Context) {
	// 浏览器 WebSocket 不支持自定义header，令牌放在查询参数里
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "缺少认证令牌")
		return
	}
	user, ok := h.auth.Authenticate(c, token)
	if !ok {
		return
	}
	if h.queue == nil {
		response.Error(c, http.StatusServiceUnavailable, "实时推送未启用")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	entry := h.log.WithFields(logrus.Fields{"user_id": user.ID, "remote_addr": c.ClientIP()})
	entry.Info("WebSocket connection established")
	defer entry.Info("WebSocket connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.queue.Subscribe(ctx, services.UserChannel(user.ID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		entry.WithError(err).Error("Failed to subscribe to Redis channel")
		return
	}

	// 先推一次未读数，客户端据此初始化角标
	if count, err := h.notifications.UnreadCount(ctx, user.ID); err == nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(wsMessage{Type: "unread", Data: gin.H{"count": count}}); err != nil {
			return
		}
	}

	go h.readPump(conn, cancel)

	ch := pubsub.Channel()
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsMessage{Type: "notification", Data: json.RawMessage(msg.Payload)}); err != nil {
				entry.WithError(err).Warn("Failed to send message to client")
				return
			}
		}
	}
}

// readPump 处理客户端消息（主要是pong），连接断开时取消订阅
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Error("WebSocket unexpected close")
			}
			return
		}
	}
}

// matchOrigin 支持精确匹配和 *.example.com 通配
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}

	domain := allowed[2:]
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
