package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/pkg/logger"
)

// WebSocketHandler streams queue events (created, approved, rejected,
// applied, apply_failed) to review UI clients.
type WebSocketHandler struct {
	broker *queue.Broker
}

func NewWebSocketHandler(broker *queue.Broker) *WebSocketHandler {
	return &WebSocketHandler{broker: broker}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Queue event stream connected", zap.String("remote", c.RemoteAddr().String()))

	events, cancel := h.broker.Subscribe()
	defer func() {
		cancel()
		c.Close()
		logger.Info("Queue event stream closed")
	}()

	// drain client frames so close/ping control messages are handled
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				logger.Warn("Failed to push queue event", zap.Error(err))
				return
			}
		}
	}
}
