package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// Client actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionBroadcast   = "broadcast"
)

const maxFrameBytes = 64 << 10

// ClientMessage represents an inbound frame from a WebSocket client. Topics
// is used by subscribe/unsubscribe; Topic, Event and Payload by broadcast.
type ClientMessage struct {
	Action  string          `json:"action"`
	Topics  []string        `json:"topics,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Event   broadcast.Event `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProcessMessage handles an inbound ClientMessage from client.
func (h *Hub) ProcessMessage(ctx context.Context, client *Client, msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		h.Join(client, msg.Topics)
	case ActionUnsubscribe:
		h.Leave(client, msg.Topics)
	case ActionBroadcast:
		env := broadcast.Envelope{
			Type:    broadcast.EnvelopeType,
			Topic:   msg.Topic,
			Event:   msg.Event,
			Payload: msg.Payload,
		}
		if err := h.publishFrom(ctx, client, env); err != nil {
			h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("dropping client broadcast")
		}
	}
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS origins are enforced by the echo middleware.
	},
}

// Handler handles HTTP-to-WebSocket upgrades and frame routing.
type Handler struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewHandler creates a new handler bound to the given Hub.
func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the hub, and starts read/write pumps. Repeated "topic" query
// parameters subscribe the client at connect time.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxFrameBytes)

	topics := c.QueryParams()["topic"]
	if topics == nil {
		topics = []string{}
	}

	client := &Client{
		ID:     uuid.New().String(),
		Topics: append([]string(nil), topics...),
		Send:   make(chan []byte, 256),
		hub:    wsh.hub,
		conn:   &gorillaConnAdapter{ws},
	}

	wsh.hub.Register(client)
	wsh.logger.Debug().Str("client_id", client.ID).Strs("topics", topics).Msg("realtime client connected")

	go wsh.writePump(client)
	go wsh.readPump(client)

	return nil
}

// readPump reads frames from the connection and processes them until the
// connection fails.
func (wsh *Handler) readPump(client *Client) {
	defer func() {
		wsh.hub.Unregister(client)
		client.conn.Close()
		wsh.logger.Debug().Str("client_id", client.ID).Msg("realtime client disconnected")
	}()

	ctx := context.Background()
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed frames.
		}

		wsh.hub.ProcessMessage(ctx, client, msg)
	}
}

// writePump writes frames from the Send channel to the connection.
func (wsh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
