package presencehandler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pairdrawgo/internal/presence"
	"pairdrawgo/internal/services/pairing"
)

const (
	dirCacheTTL = 30 * time.Second
)

func dirCacheKey(identity string) string { return "dir:" + identity + ":addr" }

// Handler answers "is this user reachable right now, and if not, where
// was it last seen". Online status comes from the registry (local maps,
// then the shared binding store); the last-known address falls back to
// the user directory, cached in Redis.
type Handler struct {
	reg *presence.Registry
	svc pairing.IPairingService
	rdc *redis.Client // directory cache; nil in degraded mode
}

func New(reg *presence.Registry, svc pairing.IPairingService, rdc *redis.Client) *Handler {
	return &Handler{reg: reg, svc: svc, rdc: rdc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/presence/:user", h.get)
}

func (h *Handler) get(c *gin.Context) {
	user := c.Param("user")

	connID, err := h.reg.ActiveConn(c.Request.Context(), user)
	if err != nil {
		// Store outage: degrade to the directory fallback below.
		zap.L().Warn("presence.lookup_store", zap.String("uid", user), zap.Error(err))
	}
	if connID != "" {
		c.JSON(http.StatusOK, PresenceResponse{User: user, Online: true})
		return
	}

	addr := h.lastKnownAddr(c, user)
	if addr == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no presence recorded for " + user})
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{User: user, Online: false, LastAddr: addr})
}

func (h *Handler) lastKnownAddr(c *gin.Context, user string) string {
	ctx := c.Request.Context()

	if h.rdc != nil {
		if cached, err := h.rdc.Get(ctx, dirCacheKey(user)).Result(); err == nil && cached != "" {
			return cached
		}
	}

	addr, err := h.svc.Lookup(ctx, user)
	if err != nil {
		zap.L().Warn("presence.directory_lookup", zap.String("uid", user), zap.Error(err))
		return ""
	}
	if addr != "" && h.rdc != nil {
		if err := h.rdc.Set(ctx, dirCacheKey(user), addr, dirCacheTTL).Err(); err != nil {
			zap.L().Debug("presence.directory_cache", zap.Error(err))
		}
	}
	return addr
}
