package handlers

import (
	"ev-marketplace/internal/domain"
	"ev-marketplace/internal/infrastructure/websocket"
	"ev-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type WebSocketHandler struct {
	wsHandler *websocket.Handler
}

func NewWebSocketHandler(listingRepo domain.ListingRepository,
	connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: websocket.NewHandler(listingRepo, connManager, log),
	}
}

func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	h.wsHandler.HandleConnection(c.Response(), c.Request(), c.Param("id"))
	return nil
}
