package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/gin-gonic/gin"
)

// SSEHandler streams lifecycle events
type SSEHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *events.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: 30 * time.Second}
}

// Stream GET /events
func (h *SSEHandler) Stream(c *gin.Context) {
	actor := GetActor(c)
	clientID := fmt.Sprintf("%s_%d", actor.ID, time.Now().UnixNano())

	client := &events.Client{
		ID:     clientID,
		UserID: actor.ID,
		Events: make(chan events.Message, 64),
	}
	h.hub.Register(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			h.hub.Unregister(clientID)
			return
		case msg, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", msg.EventType, msg.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
