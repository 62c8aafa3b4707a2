package handler

import (
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewEngine builds the gin engine with recovery and request logging.
func NewEngine(logger zerolog.Logger, h *Handler, ws *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger))

	h.RegisterRoutes(r)
	ws.RegisterRoutes(r)
	return r
}
