package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JeevanLal1/ProChat/internal/audit"
	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/JeevanLal1/ProChat/internal/identity"
	"github.com/JeevanLal1/ProChat/internal/service"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/JeevanLal1/ProChat/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *hub.Hub
	manager  service.ConnectionManager
	resolver identity.Resolver
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, manager service.ConnectionManager, resolver identity.Resolver, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		manager:  manager,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// originChecker allows every origin when the list is empty.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes, so the request log records the connection's lifetime.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	id, err := h.resolver.Resolve(c.Request)
	if err != nil {
		audit.LogFailure(ctx, audit.ActionIdentityFailed, "", "", err, "handshake identity rejected")
		response.Unauthorized(c, "invalid credentials")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	c.Set(log.FieldConnID, client.ID)
	c.Set(log.FieldUserID, id.UserID)
	c.Set(log.FieldUsername, id.Username)

	if err := h.manager.Open(ctx, client, id.UserID, id.Username); err != nil {
		if errors.Is(err, service.ErrShuttingDown) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		}
		l.Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("failed to open connection")
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(h.manager.HandleMessage, h.manager.Close)
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", h.HandleWebSocket)
}
