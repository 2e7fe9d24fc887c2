// Package ratelimit implements per-IP rate limiting for the HTTP API and
// WebSocket accepts, backed by an in-memory store.
package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huddlekit/huddle/internal/v1/config"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// Limiter holds the per-surface limiter instances.
type Limiter struct {
	api  *limiter.Limiter
	wsIP *limiter.Limiter
}

// New parses the configured rates and builds memory-backed limiters.
func New(cfg *config.Config) (*Limiter, error) {
	apiRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPI)
	if err != nil {
		return nil, fmt.Errorf("invalid API rate: %w", err)
	}
	wsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS rate: %w", err)
	}

	store := memory.NewStore()
	return &Limiter{
		api:  limiter.New(store, apiRate),
		wsIP: limiter.New(store, wsRate, limiter.WithClientIPHeader("X-Forwarded-For")),
	}, nil
}

// APIMiddleware returns the gin middleware guarding the request/response API.
func (l *Limiter) APIMiddleware() gin.HandlerFunc {
	return mgin.NewMiddleware(l.api)
}

// AllowWebSocket checks the accept budget for the caller's IP before the
// upgrade. Writes the 429 itself so callers can just return.
func (l *Limiter) AllowWebSocket(c *gin.Context) bool {
	key := "ws:" + c.ClientIP()
	lctx, err := l.wsIP.Get(c.Request.Context(), key)
	if err != nil {
		logging.Error(c.Request.Context(), "rate limiter failure", zap.Error(err))
		return true // fail open
	}
	if lctx.Reached {
		logging.Warn(c.Request.Context(), "websocket accept rate limited",
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts"})
		return false
	}
	return true
}
