package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/hooks"
)

// tenantHeader carries the caller's tenant. Empty means system scope.
const tenantHeader = "X-Tenant-ID"

// maxHookBodyBytes caps how much of a request body is copied into the
// hook context. Larger bodies are passed through untouched.
const maxHookBodyBytes = 64 * 1024

func tenantID(c *gin.Context) string {
	return c.GetHeader(tenantHeader)
}

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestHooks wraps every route in the request.pre / request.post hook
// pair. A pre hook that aborts short-circuits the handler with 403 and
// the abort reason; post hooks run concurrently after the response is
// written and cannot alter it.
func (s *Server) requestHooks() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.PreHooks == nil && s.deps.PostHooks == nil {
			c.Next()
			return
		}

		tenant := tenantID(c)
		start := time.Now()

		if s.deps.PreHooks != nil {
			hc := hooks.NewHookContext(hooks.EventRequestPre, tenant, map[string]any{
				hooks.DataMethod:  c.Request.Method,
				hooks.DataPath:    c.Request.URL.Path,
				hooks.DataHeaders: headerMap(c.Request.Header),
				hooks.DataBody:    peekBody(c),
			})
			s.deps.PreHooks.Run(c.Request.Context(), hc)
			if aborted, reason := hc.Aborted(); aborted {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":        "request blocked",
					"abort_reason": reason,
				})
				return
			}
		}

		c.Next()

		if s.deps.PostHooks != nil {
			hc := hooks.NewHookContext(hooks.EventRequestPost, tenant, map[string]any{
				hooks.DataMethod:          c.Request.Method,
				hooks.DataPath:            c.Request.URL.Path,
				hooks.DataStatusCode:      c.Writer.Status(),
				hooks.DataResponseHeaders: headerMap(c.Writer.Header()),
				hooks.DataDurationMS:      time.Since(start).Milliseconds(),
			})
			s.deps.PostHooks.Run(c.Request.Context(), hc)
		}
	}
}

// peekBody reads up to maxHookBodyBytes of the request body for the hook
// context and restores the stream for the handler.
func peekBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.ContentLength == 0 ||
		c.Request.ContentLength > maxHookBodyBytes {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHookBodyBytes))
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	return string(data)
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
