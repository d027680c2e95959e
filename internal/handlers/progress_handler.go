package handlers

import (
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nlaakstudios/storyboard-studio/internal/services"
)

// ProgressHandler streams live build progress over SSE, kept from the
// teacher's ProgressHandler (same subscribe/keepalive loop).
type ProgressHandler struct {
	broadcaster *services.ProgressBroadcaster
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(broadcaster *services.ProgressBroadcaster) *ProgressHandler {
	return &ProgressHandler{broadcaster: broadcaster}
}

// StreamProgress streams progress updates for every build via SSE.
func (h *ProgressHandler) StreamProgress(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	clientChan := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(clientChan)

	clientGone := c.Request.Context().Done()

	c.Writer.Write([]byte("data: {\"message\":\"connected\",\"timestamp\":\"" + time.Now().Format(time.RFC3339) + "\"}\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			log.Println("Client disconnected from progress stream")
			return
		case update := <-clientChan:
			data := services.FormatSSE(update)
			if data != "" {
				if _, err := c.Writer.Write([]byte(data)); err != nil {
					if err != io.EOF {
						log.Printf("Error writing SSE data: %v", err)
					}
					return
				}
				c.Writer.Flush()
			}
		case <-time.After(30 * time.Second):
			c.Writer.Write([]byte(": keepalive\n\n"))
			c.Writer.Flush()
		}
	}
}

// GetStats returns broadcaster statistics.
func (h *ProgressHandler) GetStats(c *gin.Context) {
	c.JSON(200, gin.H{
		"connected_clients": h.broadcaster.ClientCount(),
		"timestamp":         time.Now(),
	})
}
