package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridebot/internal/redis"
	"ridebot/internal/service"
)

// sidField is the transport's unique ID for an inbound message. The
// transport redelivers webhooks it considers failed, so the same
// message can arrive more than once.
const sidField = "MessageSid"

// responseWriter wraps gin.ResponseWriter to capture the response body.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// DedupMiddleware returns middleware that replays the original reply
// for redelivered webhook messages instead of running the state
// transition again.
func DedupMiddleware(store redis.DedupStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		sid := c.PostForm(sidField)
		if sid == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		cached, found, err := store.Reply(ctx, sid)
		if err != nil {
			// Dedup store down: process normally rather than drop the
			// message.
			c.Next()
			return
		}

		if found {
			c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Only completed exchanges are replayed. The generic failure
		// reply is never remembered: a redelivery after a transient
		// outage should get a fresh attempt, not the stale error.
		body := w.body.String()
		if c.Writer.Status() == http.StatusOK && !strings.Contains(body, service.ErrorReply()) {
			_ = store.Remember(ctx, sid, body)
		}
	}
}
