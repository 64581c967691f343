package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"carelink/internal/events"
	"carelink/internal/presence"
	"carelink/internal/registry"
	"carelink/internal/services"
	"carelink/internal/transport/httpdto"
	"carelink/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// controlMessage is what clients send over the socket: channel management
// and application-level heartbeats.
type controlMessage struct {
	Action         string `json:"action"` // subscribe | unsubscribe | heartbeat
	ConversationID string `json:"conversation_id,omitempty"`
}

type Handler struct {
	auth          *services.AuthService
	hub           *Hub
	registry      *registry.Registry
	presence      *presence.Broadcaster
	conversations *services.ConversationService
	readTimeout   time.Duration
	log           *logger.Logger
}

// NewHandler wires the socket endpoint. readTimeout is the heartbeat window:
// a connection that stays silent longer than this is dropped.
func NewHandler(auth *services.AuthService, hub *Hub, reg *registry.Registry, pres *presence.Broadcaster, conversations *services.ConversationService, readTimeout time.Duration, log *logger.Logger) *Handler {
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &Handler{auth: auth, hub: hub, registry: reg, presence: pres, conversations: conversations, readTimeout: readTimeout, log: log}
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID := claims.UserID
	connectionID := h.registry.Register(userID)
	client := NewClient(conn, userID.String(), connectionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.UserChannel(userID.String()))
	go client.WriteLoop(ctx)
	go h.presence.NotifyPresence(ctx, userID, true)

	conn.SetPongHandler(func(string) error {
		h.registry.Heartbeat(connectionID)
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		h.handleControl(ctx, client, userID, data)
	}

	h.hub.Unregister(client)
	h.registry.Unregister(connectionID)
	h.presence.NotifyPresence(context.Background(), userID, false)
}

func (h *Handler) handleControl(ctx context.Context, client *Client, userID uuid.UUID, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Action {
	case "heartbeat":
		h.registry.Heartbeat(client.ConnectionID)
	case "subscribe":
		conversationID, err := uuid.Parse(msg.ConversationID)
		if err != nil {
			return
		}
		ok, err := h.conversations.IsUserParticipant(ctx, conversationID, userID)
		if err != nil || !ok {
			return
		}
		h.hub.Subscribe(client, events.ConversationChannel(conversationID.String()))
	case "unsubscribe":
		if msg.ConversationID != "" {
			h.hub.Unsubscribe(client, events.ConversationChannel(msg.ConversationID))
		}
	}
}
