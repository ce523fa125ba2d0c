package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/auth"
	"github.com/fieldserve/workflow-service/internal/notifier"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// WsHandler upgrades notification stream connections and registers them with
// the hub.
type WsHandler struct {
	hub    *notifier.Hub
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewWsHandler constructs handler.
func NewWsHandler(hub *notifier.Hub, tokens *auth.TokenManager, logger *zap.Logger) *WsHandler {
	return &WsHandler{hub: hub, tokens: tokens, logger: logger}
}

// Upgrade gates the HTTP->websocket upgrade. Browsers cannot set headers on
// websocket dials, so the token rides the query string.
func (h *WsHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		return apperrors.NewUnauthorized("token required")
	}
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	c.Locals("ws_user_id", claims.UserID)
	return c.Next()
}

// Stream is the websocket session loop. The client sends nothing meaningful;
// the connection exists for server pushes and pong replies.
func (h *WsHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("ws_user_id").(string)
		if !ok || userID == "" {
			_ = conn.Close()
			return
		}

		h.hub.Register(userID, conn)
		defer h.hub.Unregister(userID, conn)

		conn.SetPongHandler(func(string) error {
			h.hub.MarkAlive(userID)
			return nil
		})
		if err := h.hub.Greet(userID, conn); err != nil {
			h.logger.Warn("handshake frame failed", zap.String("user_id", userID), zap.Error(err))
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
