package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/societyops/internal/observability/context"
	"github.com/smallbiznis/societyops/internal/ratelimit"
	"go.uber.org/zap"
)

const HeaderActor = "X-Actor-Id"

// actorFrom returns the caller identity the request logger placed on the
// context. Commands reject an empty actor during validation.
func actorFrom(c *gin.Context) string {
	if _, actorID := obscontext.ActorFromContext(c.Request.Context()); strings.TrimSpace(actorID) != "" {
		return strings.TrimSpace(actorID)
	}
	return strings.TrimSpace(c.GetHeader(HeaderActor))
}

type writeLimiter interface {
	AllowWrite(ctx context.Context, actor string) (*ratelimit.RateLimitResult, error)
}

// WriteRateLimit throttles mutating requests per actor. Limiter failures
// are logged and let the request through.
func WriteRateLimit(limiter writeLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		res, err := limiter.AllowWrite(c.Request.Context(), actorFrom(c))
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Code:    "too_many_requests",
				Message: "too many write requests, retry later",
			}})
			return
		}
		c.Next()
	}
}
