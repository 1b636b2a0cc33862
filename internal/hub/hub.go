package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	redisstate "github.com/JojayD/codecanvas-sub000/internal/infra/state/redis"
	"github.com/JojayD/codecanvas-sub000/internal/tasks"
)

// WebSocket timing constants shared by hub and client.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// HubMessage is the internal envelope between clients and the hub loop.
type HubMessage struct {
	Type    string // "register", "unregister", "frame"
	RoomID  string
	ActorID string
	Client  *Client
	RawData []byte
}

// clientFrame is what clients send over the wire. Only whiteboard
// updates travel the socket; everything else is plain HTTP.
type clientFrame struct {
	Type     string          `json:"type"`
	Document json.RawMessage `json:"document"`
}

// Hub keeps the websocket clients of each room and bridges them to the
// redis change feed: the first subscriber of a room opens a pub/sub
// subscription on the room channel, the last one tears it down. All
// store mutations reach clients through that channel, so every instance
// of the service fans out the same events.
type Hub struct {
	messageChan chan HubMessage

	rooms   map[string]map[*Client]bool
	subs    map[string]*redis.PubSub
	roomsMu sync.RWMutex

	redisClient *redis.Client
	keyPrefix   string
	asynqClient *asynq.Client
}

// NewHub creates the hub.
func NewHub(redisClient *redis.Client, keyPrefix string, asynqClient *asynq.Client) *Hub {
	if redisClient == nil {
		panic("redis client cannot be nil for Hub")
	}
	if asynqClient == nil {
		panic("asynq client cannot be nil for Hub")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]*redis.PubSub),
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		asynqClient: asynqClient,
	}
}

// Run drives the hub's event loop. Call it in its own goroutine.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "frame":
			go h.handleClientFrame(msg)
		default:
			log.Warnf("Hub: received unknown message type: %s from %s in room %s", msg.Type, msg.ActorID, msg.RoomID)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage puts a message on the hub's queue without blocking.
// Returns false when the queue is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
			"actor_id":     msg.ActorID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":  roomID,
		"actor_id": client.ActorID(),
		"action":   "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		h.startRoomSubscription(roomID)
		logCtx.Info("Change-feed subscription opened for room")
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":  roomID,
		"actor_id": client.ActorID(),
		"action":   "unregisterClient",
	})

	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[roomID]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)

			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or drained during unregister")
			default:
				close(client.send)
			}

			if len(roomClients) == 0 {
				delete(h.rooms, roomID)
				h.stopRoomSubscription(roomID)
				logCtx.Info("Room empty, change-feed subscription closed")
			}
		} else {
			logCtx.Warn("Client not found in room during unregister")
		}
	} else {
		logCtx.Warn("Room not found during client unregister")
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")
}

// startRoomSubscription opens the room's change-feed channel and pumps
// it into the local clients. Caller holds roomsMu.
func (h *Hub) startRoomSubscription(roomID string) {
	channel := redisstate.ChannelForRoom(h.keyPrefix, roomID)
	pubsub := h.redisClient.Subscribe(context.Background(), channel)
	h.subs[roomID] = pubsub

	go func() {
		logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "channel": channel})
		for msg := range pubsub.Channel() {
			h.broadcast(roomID, []byte(msg.Payload))
		}
		logCtx.Debug("Change-feed pump exited")
	}()
}

// stopRoomSubscription closes the room's pub/sub. Caller holds roomsMu.
func (h *Hub) stopRoomSubscription(roomID string) {
	if pubsub, ok := h.subs[roomID]; ok {
		delete(h.subs, roomID)
		if err := pubsub.Close(); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to close room subscription")
		}
	}
}

// StopAllSubscriptions tears down every change-feed subscription; part
// of graceful shutdown.
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID := range h.subs {
		h.stopRoomSubscription(roomID)
	}
}

// handleClientFrame processes a raw message from a client. Whiteboard
// updates are queued for write-behind persistence; the persisted version
// comes back to every subscriber through the change feed.
func (h *Hub) handleClientFrame(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":  msg.RoomID,
		"actor_id": msg.ActorID,
	})

	var frame clientFrame
	if err := json.Unmarshal(msg.RawData, &frame); err != nil {
		logCtx.WithError(err).Warn("Dropping malformed client frame")
		return
	}

	switch frame.Type {
	case "whiteboard":
		payload, err := tasks.NewWhiteboardPersistTask(msg.RoomID, msg.ActorID, frame.Document)
		if err != nil {
			logCtx.WithError(err).Error("Failed to build whiteboard persist task payload")
			return
		}
		task := asynq.NewTask(tasks.TypeWhiteboardPersist, payload)
		if _, err := h.asynqClient.Enqueue(task, asynq.Queue("critical")); err != nil {
			logCtx.WithError(err).Error("Failed to enqueue whiteboard persist task")
			return
		}
		logCtx.Debug("Whiteboard frame queued for persistence")
	default:
		logCtx.Warnf("Dropping client frame with unknown type: %s", frame.Type)
	}
}

// broadcast delivers a change-feed payload to every local client of the
// room. Non-blocking sends: a slow client loses the message rather than
// stalling the feed.
func (h *Hub) broadcast(roomID string, message []byte) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"message_size":    len(message),
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting change-feed message")

	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			logCtx.WithField("receiver_actor_id", client.ActorID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// ActiveRoomIDs lists rooms that currently have at least one subscriber.
func (h *Hub) ActiveRoomIDs() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for roomID := range h.rooms {
		ids = append(ids, roomID)
	}
	return ids
}
