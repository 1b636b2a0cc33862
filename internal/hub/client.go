package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client is one websocket subscriber of a room's change feed.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	roomID  string
	actorID string
	send    chan []byte
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, roomID, actorID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		roomID:  roomID,
		actorID: actorID,
		send:    make(chan []byte, 256),
	}
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump forwards frames from the socket into the hub queue. Runs in
// its own goroutine; exiting triggers client unregistration.
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frameMsg := HubMessage{
			Type:    "frame",
			RoomID:  c.roomID,
			ActorID: c.actorID,
			Client:  c,
			RawData: message,
		}
		select {
		case c.hub.messageChan <- frameMsg:
		default:
			logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump pushes queued messages to the socket and keeps the
// connection alive with pings. Runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregistration.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"actor_id": c.actorID, "room_id": c.roomID}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) RoomID() string  { return c.roomID }
func (c *Client) ActorID() string { return c.actorID }
func (c *Client) CloseConn()      { c.conn.Close() }
