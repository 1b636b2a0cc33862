package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/hub"
	"github.com/JojayD/codecanvas-sub000/internal/middleware"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin clients are expected; auth happens via token, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades room connections and hands them to the hub.
type Handler struct {
	hub         *hub.Hub
	roomService *service.RoomService
	log         *logrus.Logger
}

// NewHandler creates the websocket handler.
func NewHandler(h *hub.Hub, roomService *service.RoomService, log *logrus.Logger) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for websocket Handler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{hub: h, roomService: roomService, log: log}
}

// Serve handles GET /ws/rooms/:roomId. The room id may be the internal
// uuid or the public numeric id.
func (h *Handler) Serve(c *gin.Context) {
	room, err := h.roomService.Resolve(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.IsClosed() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room is closed"})
		return
	}

	actorID := ""
	if v, ok := c.Get(middleware.CtxActorID); ok {
		actorID, _ = v.(string)
	}
	if actorID == "" {
		actorID = c.Query("userId")
	}
	if actorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"room_id": room.ID,
			"error":   err.Error(),
		}).Error("Websocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn, room.ID, actorID)
	if !h.hub.QueueMessage(hub.HubMessage{
		Type:   "register",
		RoomID: room.ID,
		Client: client,
	}) {
		h.log.WithField("room_id", room.ID).Warn("Hub queue full, dropping connection")
		conn.Close()
		return
	}

	h.log.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"actor_id": actorID,
	}).Info("Websocket client connected")

	client.Run()
}
