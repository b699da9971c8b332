package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sprayDispatch/internal/auth"
	"sprayDispatch/internal/logging"
)

const (
	principalKey    = "principal"
	requestIDHeader = "X-Request-ID"
)

// RequestLogger tags the request with an id and logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	log = logging.OrDiscard(log)
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), rid))

		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		l := logging.FromContext(c.Request.Context(), log)
		switch {
		case len(c.Errors) > 0:
			l.Error("http_request", append(attrs, slog.String("error", c.Errors.String()))...)
		case c.Writer.Status() >= http.StatusInternalServerError:
			l.Error("http_request", attrs...)
		default:
			l.Info("http_request", attrs...)
		}
	}
}

// Recovery turns panics into a 500 envelope.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	log = logging.OrDiscard(log)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), log).Error("http_panic", slog.Any("panic", recovered))
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	})
}

// BearerAuth requires an operator token in the Authorization header.
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "authorization header required")
			return
		}
		p, err := auth.ParseBearer(header, secret)
		if err != nil || p.Kind != auth.KindOperator {
			fail(c, http.StatusUnauthorized, CodeInvalidToken, "invalid or expired token")
			return
		}
		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func principal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}
