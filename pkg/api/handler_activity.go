package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/events"
)

// activityHandler handles GET /api/v1/activity: the most recent feed
// entries, newest first.
func (s *Server) activityHandler(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}
	entries := s.deps.Feed.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"activity": entries, "count": len(entries)})
}

// activityStreamHandler handles GET /api/v1/activity/stream: a
// server-sent event stream of live bus events. `channel` narrows to one
// trace or run; the default is the global activity channel.
func (s *Server) activityStreamHandler(c *gin.Context) {
	channel := events.GlobalChannel
	if v := c.Query("channel"); v != "" {
		channel = v
	}

	sub := s.deps.Bus.Subscribe(channel)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to marshal activity event", "error", err)
				return true
			}
			c.SSEvent(ev.Type, string(data))
			return true
		}
	})
}
