package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nlaakstudios/storyboard-studio/internal/database"
	"github.com/nlaakstudios/storyboard-studio/internal/services"
)

// QueueHandler handles build_queue requests, kept from the teacher's
// QueueHandler shape (same broadcaster-on-mutation behavior).
type QueueHandler struct {
	repo        *database.QueueRepository
	broadcaster *services.ProgressBroadcaster
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(repo *database.QueueRepository, broadcaster *services.ProgressBroadcaster) *QueueHandler {
	return &QueueHandler{
		repo:        repo,
		broadcaster: broadcaster,
	}
}

// GetAll returns all queue items.
func (h *QueueHandler) GetAll(c *gin.Context) {
	items, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queue": items})
}

// GetByID returns a queue item by ID.
func (h *QueueHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	item, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// Delete removes a queue item and broadcasts its cancellation.
func (h *QueueHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	item, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
		return
	}

	if err := h.repo.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.BroadcastFromQueueItem(item, "Build cancelled")

	c.JSON(http.StatusOK, gin.H{"message": "queue item deleted"})
}

// GetNext returns the next pending queue item.
func (h *QueueHandler) GetNext(c *gin.Context) {
	item, err := h.repo.GetNextPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"item": nil, "message": "no pending items"})
		return
	}

	c.JSON(http.StatusOK, item)
}
