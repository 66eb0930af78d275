package handlers

import (
	"reverse-auction/internal/infrastructure/websocket"

	"github.com/labstack/echo/v4"
)

type WebSocketHandler struct {
	wsHandler *websocket.Handler
}

func NewWebSocketHandler(wsHandler *websocket.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	h.wsHandler.HandleConnection(c.Response(), c.Request(), c.Param("listingId"))
	return nil
}
