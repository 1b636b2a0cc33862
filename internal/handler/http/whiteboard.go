package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JojayD/codecanvas-sub000/internal/service"
)

// WhiteboardHandler exposes the versioned whiteboard document.
type WhiteboardHandler struct {
	roomService *service.RoomService
	wbService   *service.WhiteboardService
}

// NewWhiteboardHandler creates the handler.
func NewWhiteboardHandler(roomService *service.RoomService, wbService *service.WhiteboardService) *WhiteboardHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for WhiteboardHandler")
	}
	if wbService == nil {
		panic("WhiteboardService cannot be nil for WhiteboardHandler")
	}
	return &WhiteboardHandler{roomService: roomService, wbService: wbService}
}

// GetWhiteboard handles GET /api/rooms/:roomId/whiteboard.
func (h *WhiteboardHandler) GetWhiteboard(c *gin.Context) {
	room, err := h.roomService.Resolve(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	wb, err := h.wbService.Get(c.Request.Context(), room.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, wb)
}

// UpdateWhiteboardRequest carries the replacement document.
type UpdateWhiteboardRequest struct {
	Document json.RawMessage `json:"document" binding:"required"`
}

// UpdateWhiteboard handles PUT /api/rooms/:roomId/whiteboard.
func (h *WhiteboardHandler) UpdateWhiteboard(c *gin.Context) {
	var req UpdateWhiteboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: document is required")
		return
	}
	room, err := h.roomService.Resolve(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	wb, err := h.wbService.Apply(c.Request.Context(), room.ID, actorID(c), req.Document)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, wb)
}
