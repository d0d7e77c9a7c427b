package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pickup-client/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("Recovered from panic")

				resp := ErrorResponse{Status: http.StatusInternalServerError}
				resp.Error.Message = "Internal server error"
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()
		c.Next()
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("device_id", deviceID(c, "")).
			Int("status_code", status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}

// requireStaff rejects requests without the configured staff token. An
// empty token disables the staff routes.
func requireStaff(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isStaff(c, token) {
			resp := ErrorResponse{Status: http.StatusForbidden}
			resp.Error.Message = "Staff access required"
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}
		c.Next()
	}
}

func isStaff(c *gin.Context, token string) bool {
	return token != "" && c.GetHeader(staffHeader) == token
}

// limitCommands applies the per-device command budget. When Redis is
// unreachable commands are let through.
func limitCommands(l *ratelimit.Limiter, fallbackDevice string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok, err := l.Allow(c.Request.Context(), deviceID(c, fallbackDevice))
		if err != nil {
			logger.Warn().Err(err).Msg("Command limiter unavailable, allowing command")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(state.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(state.Remaining()))
		if !ok {
			wait := state.TimeUntilReset(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			resp := ErrorResponse{Status: http.StatusTooManyRequests}
			resp.Error.Message = "Too many commands, try again shortly"
			c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
			return
		}
		c.Next()
	}
}
