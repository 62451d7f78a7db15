package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	reqBodyLimit  = 8 * 1024 // 8KB
	respBodyLimit = 8 * 1024 // 8KB
	truncatedMark = "...truncated..."
)

// cappedWriter keeps the first respBodyLimit bytes of the response.
type cappedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *cappedWriter) Write(b []byte) (int, error) {
	if room := respBodyLimit - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(len(b), room)])
	}
	return w.ResponseWriter.Write(b)
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// peekBody reads up to n+1 bytes and puts them back in front of the unread rest.
func peekBody(r *http.Request, n int) (head []byte, truncated bool) {
	orig := r.Body
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, orig, int64(n+1))
	head = buf.Bytes()
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), orig), orig}
	return head, len(head) > n
}

func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
		c.Request.Header.Set("X-Request-Id", id)
	}
	c.Header("X-Request-Id", id)
	return id
}

// Logging logs one line per request and puts a request-scoped slog.Logger on the context.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := base.With(
			"req_id", requestID(c),
			"method", c.Request.Method,
			"path", c.FullPath(), // empty when no route matched
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBody string
		if c.Request.Body != nil && isJSON(c.GetHeader("Content-Type")) {
			head, truncated := peekBody(c.Request, reqBodyLimit)
			if truncated {
				reqBody = truncatedMark // cut JSON cannot be redacted
			} else {
				reqBody = string(redactJSON(head))
			}
		}

		w := &cappedWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if q := redactQuery(c.Request.URL.Query()); q != "" {
			attrs = append(attrs, "query", q)
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if isJSON(c.Writer.Header().Get("Content-Type")) && w.buf.Len() > 0 {
			resp := string(redactJSON(w.buf.Bytes()))
			if w.buf.Len() >= respBodyLimit {
				resp = truncatedMark
			}
			attrs = append(attrs, "resp_body", resp)
		}
		if len(c.Params) > 0 {
			attrs = append(attrs, "params", c.Params)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		if loc := c.Writer.Header().Get("Location"); loc != "" {
			attrs = append(attrs, "location", loc)
		}

		if status >= http.StatusBadRequest {
			l.Error("http_request", attrs...)
			return
		}
		l.Info("http_request", attrs...)
	}
}
