package handler

import (
	"sort"

	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/JeevanLal1/ProChat/internal/presence"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/JeevanLal1/ProChat/pkg/response"
	"github.com/gin-gonic/gin"
)

// Handler serves the relay's plain HTTP endpoints.
type Handler struct {
	presence *presence.Broadcaster
	hub      *hub.Hub
	apiAuth  []gin.HandlerFunc
}

// NewHandler builds the handler. apiAuth guards the /api/v1 group.
func NewHandler(p *presence.Broadcaster, h *hub.Hub, apiAuth ...gin.HandlerFunc) *Handler {
	return &Handler{presence: p, hub: h, apiAuth: apiAuth}
}

type onlineUsersResponse struct {
	Scope       string   `json:"scope"`
	UserIDs     []string `json:"user_ids"`
	Connections int      `json:"connections,omitempty"`
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", h.apiAuth...)
	{
		api.GET("/presence/online", h.OnlineUsers)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "connections": h.hub.Count()})
}

// OnlineUsers returns this instance's presence snapshot, or the mirrored
// cross-instance view with ?scope=global.
func (h *Handler) OnlineUsers(c *gin.Context) {
	ctx := c.Request.Context()

	switch scope := c.DefaultQuery("scope", "local"); scope {
	case "local":
		response.Success(c, onlineUsersResponse{
			Scope:       scope,
			UserIDs:     h.presence.Snapshot(),
			Connections: h.hub.Count(),
		})
	case "global":
		ids, err := h.presence.GlobalSnapshot(ctx)
		if err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("failed to read global presence")
			response.ServiceUnavailable(c, "presence store unavailable")
			return
		}
		sort.Strings(ids)
		response.Success(c, onlineUsersResponse{Scope: scope, UserIDs: ids})
	default:
		response.BadRequest(c, "scope must be local or global")
	}
}
