package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jrm/internal/constants"
	pkgerrors "jrm/pkg/errors"
	"jrm/pkg/logging"
)

func LoggerMiddleware(logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"method", c.Request.Method,
			"path", path,
			logging.RequestIDKey, c.GetString(logging.RequestIDKey),
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warnw("HTTP Request", fields...)
		} else {
			logger.Debugw("HTTP Request", fields...)
		}
	}
}

func RecoveryMiddleware(logger interface {
	Warnw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Warnw("Panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, pkgerrors.ToErrorResponse(pkgerrors.ErrInternal))
	})
}

// RequestIDMiddleware echoes the caller's X-Request-ID, generating one when
// absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(logging.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Header(constants.HeaderRequestID, requestID)
		c.Next()
	}
}

// BearerAuthMiddleware rejects requests whose bearer token differs from the
// one returned by expected. An empty expected token disables the check.
func BearerAuthMiddleware(expected func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		want := expected()
		if want == "" {
			c.Next()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="jwt-revocation-manager"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, pkgerrors.ToErrorResponse(pkgerrors.ErrUnauthorized))
			return
		}
		c.Next()
	}
}
