package handlers

import (
	"walletd/internal/services"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler transfer result push
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
}

func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{pushService: pushService}
}

// HandleWebSocket ?address= narrows pushes to transfers touching that address
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.pushService.HandleWebSocket(c.Writer, c.Request, c.Query("address"))
}
