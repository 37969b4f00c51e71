package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// TopicPolicy decides whether the caller behind ctx may subscribe to topic.
type TopicPolicy func(ctx context.Context, topic string) bool

// Handler upgrades /ws requests and pumps hub events to the connection.
type Handler struct {
	hub      *Hub
	policy   TopicPolicy
	upgrader gorillawebsocket.Upgrader
}

// NewHandler serves the hub. A nil policy allows every topic. origins lists
// the allowed browser origins; empty allows any.
func NewHandler(hub *Hub, policy TopicPolicy, origins []string) *Handler {
	return &Handler{
		hub:    hub,
		policy: policy,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

func checkOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(strings.TrimSpace(o), origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes mounts GET /ws on the server root. m typically carries the
// auth middleware; the feed is not part of the versioned API group.
func (h *Handler) RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	e.GET("/ws", h.HandleConnect, m...)
}

// HandleConnect upgrades the request and registers a client subscribed to the
// comma-separated ?topics= it is allowed to see.
func (h *Handler) HandleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	var topics []string
	for _, t := range strings.Split(c.QueryParam("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		return nil
	}

	client := &Client{
		ID:     uuid.NewString(),
		Topics: topics,
		Send:   make(chan []byte, sendBuffer),
	}
	if h.policy != nil {
		// ctx outlives the request handler here; it only carries identity.
		identity := context.WithoutCancel(ctx)
		client.allow = func(topic string) bool { return h.policy(identity, topic) }
	}
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if refused := h.hub.ProcessMessage(client, msg); len(refused) > 0 {
			h.hub.logger.Warn().Str("client_id", client.ID).Strs("topics", refused).Msg("subscription refused")
		}
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
