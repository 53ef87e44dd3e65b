package server

import (
	"context"
	"crypto/subtle"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"github.com/smallbiznis/subsync/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"
	contextUserIDKey = "user_id"
)

// UserRequired trusts the user id set by the upstream auth proxy.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), userID.String()))
		c.Next()
	}
}

type actionLimiter interface {
	Allow(ctx context.Context, userID string) (ratelimit.Decision, error)
}

// UserRateLimit fails open when the limiter backend errors.
func (s *Server) UserRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		userID := userIDFrom(c).String()
		decision, err := s.limiter.Allow(c.Request.Context(), userID)
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("user_id", userID), zap.Error(err))
			c.Next()
			return
		}
		s.metrics.RecordRateLimit(c.Request.Context(), c.FullPath(), decision.Allowed)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func userIDFrom(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}
