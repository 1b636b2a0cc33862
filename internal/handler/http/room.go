package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/middleware"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

// RoomHandler exposes the room lifecycle over HTTP.
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler creates the handler.
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// actorID returns the authenticated identity, "" for pure guests.
func actorID(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxActorID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CreateRoomRequest is the create payload. UserID covers guest creators
// without a session; an authenticated identity wins over it.
type CreateRoomRequest struct {
	UserID   string `json:"userId"`
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// CreateRoom handles POST /api/rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}
	creator := actorID(c)
	if creator == "" {
		creator = req.UserID
	}
	if creator == "" {
		ErrorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), creator, req.Prompt, req.Language)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": room.ID, "public_id": room.PublicID}).Info("Handler.CreateRoom: room created")
	SuccessResponse(c, http.StatusCreated, room)
}

// GetRoom handles GET /api/rooms/:roomId (public id or internal uuid).
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.Resolve(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// JoinRoomRequest is the join payload.
type JoinRoomRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username"`
}

// JoinRoom handles POST /api/rooms/:roomId/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: userId is required")
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), c.Param("roomId"), req.UserID, req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// LeaveRoomRequest is the leave payload.
type LeaveRoomRequest struct {
	UserID        string `json:"userId" binding:"required"`
	CheckHostExit bool   `json:"checkForHostExit"`
}

// LeaveRoomResponse is shared by both leave transports.
type LeaveRoomResponse struct {
	Success      bool                   `json:"success"`
	WasHostExit  bool                   `json:"wasHostExit"`
	Participants domain.ParticipantList `json:"participants,omitempty"`
}

// LeaveRoom handles POST /api/rooms/:roomId/leave.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req LeaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: userId is required")
		return
	}
	h.leave(c, c.Param("roomId"), req.UserID, req.CheckHostExit)
}

// LeaveRoomLegacy handles GET /api/rooms/leave?roomId&userId&checkForHostExit,
// the query-parameter transport some older clients still use.
func (h *RoomHandler) LeaveRoomLegacy(c *gin.Context) {
	roomID := c.Query("roomId")
	userID := c.Query("userId")
	if roomID == "" || userID == "" {
		ErrorResponse(c, http.StatusBadRequest, "roomId and userId are required")
		return
	}
	checkHostExit, _ := strconv.ParseBool(c.DefaultQuery("checkForHostExit", "false"))
	h.leave(c, roomID, userID, checkHostExit)
}

func (h *RoomHandler) leave(c *gin.Context, roomID, userID string, checkHostExit bool) {
	room, wasHostExit, err := h.roomService.LeaveRoom(c.Request.Context(), roomID, userID, actorID(c), checkHostExit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, LeaveRoomResponse{
		Success:      true,
		WasHostExit:  wasHostExit,
		Participants: room.Participants,
	})
}

// HostCheckResponse exposes the detector decision for diagnostics.
type HostCheckResponse struct {
	IsHost            bool             `json:"isHost"`
	MatchType         domain.MatchType `json:"matchType"`
	IsLastParticipant bool             `json:"isLastParticipant"`
	DebugInfo         gin.H            `json:"debugInfo"`
}

// HostCheck handles GET /api/rooms/:roomId/host-check?userId&created_by.
func (h *RoomHandler) HostCheck(c *gin.Context) {
	claimed := c.Query("userId")
	createdBy := c.Query("created_by")

	room, decision, err := h.roomService.HostCheck(c.Request.Context(), c.Param("roomId"), actorID(c), claimed, createdBy)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, HostCheckResponse{
		IsHost:            decision.IsHost,
		MatchType:         decision.MatchType,
		IsLastParticipant: decision.IsLastParticipant,
		DebugInfo: gin.H{
			"roomId":           room.ID,
			"publicId":         room.PublicID,
			"participantCount": len(room.Participants),
			"authPresent":      actorID(c) != "",
			"claimedPresent":   claimed != "",
			"paramPresent":     createdBy != "",
		},
	})
}

// ForceCloseRequest carries the client's evidence for a forced closure.
type ForceCloseRequest struct {
	UserID     string           `json:"userId" binding:"required"`
	MatchType  domain.MatchType `json:"matchType" binding:"required"`
	AuthUserID string           `json:"authUserId"`
}

// ForceCloseResponse reports the server-side verification outcome.
type ForceCloseResponse struct {
	Success            bool   `json:"success"`
	VerificationStatus string `json:"verificationStatus"`
}

// ForceClose handles POST /api/rooms/:roomId/force-close. Authority is
// re-derived server-side; the submitted match type is only vocabulary.
func (h *RoomHandler) ForceClose(c *gin.Context) {
	var req ForceCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: userId and matchType are required")
		return
	}
	authID := actorID(c)
	if authID == "" {
		authID = req.AuthUserID
	}

	_, status, err := h.roomService.ForceClose(c.Request.Context(), c.Param("roomId"), req.MatchType, req.UserID, authID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room": c.Param("roomId"), "status": status}).WithError(err).Warn("Handler.ForceClose rejected")
		if status != "" {
			c.JSON(statusCodeForForceClose(err), ForceCloseResponse{Success: false, VerificationStatus: status})
			return
		}
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, ForceCloseResponse{Success: true, VerificationStatus: status})
}

func statusCodeForForceClose(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCloseNotPermitted):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// UpdateContentRequest carries last-writer-wins content fields; nil
// means "leave untouched".
type UpdateContentRequest struct {
	Code     *string `json:"code"`
	Prompt   *string `json:"prompt"`
	Language *string `json:"language"`
}

// UpdateContent handles PUT /api/rooms/:roomId/content.
func (h *RoomHandler) UpdateContent(c *gin.Context) {
	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}
	room, err := h.roomService.UpdateContent(c.Request.Context(), c.Param("roomId"), actorID(c), req.Code, req.Prompt, req.Language)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/:roomId.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.roomService.DeleteRoom(c.Request.Context(), c.Param("roomId"), actorID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room deleted successfully"})
}
