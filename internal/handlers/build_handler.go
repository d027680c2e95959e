package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nlaakstudios/storyboard-studio/internal/database"
	"github.com/nlaakstudios/storyboard-studio/internal/models"
	"github.com/nlaakstudios/storyboard-studio/internal/services"
)

// BuildHandler handles storyboard build requests, adapted from the
// teacher's SongHandler: enqueue a build, fetch its current record.
type BuildHandler struct {
	buildRepo   *database.BuildRepository
	queueRepo   *database.QueueRepository
	broadcaster *services.ProgressBroadcaster
}

// NewBuildHandler creates a new build handler.
func NewBuildHandler(buildRepo *database.BuildRepository, queueRepo *database.QueueRepository, broadcaster *services.ProgressBroadcaster) *BuildHandler {
	return &BuildHandler{
		buildRepo:   buildRepo,
		queueRepo:   queueRepo,
		broadcaster: broadcaster,
	}
}

type createBuildRequest struct {
	LyricsText string `json:"lyrics_text" binding:"required"`
	Style      string `json:"style"`
	AudioPath  string `json:"audio_path"`
	MidiPath   string `json:"midi_path"`
	Priority   int    `json:"priority"`
}

// Create enqueues a new storyboard build.
func (h *BuildHandler) Create(c *gin.Context) {
	var req createBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	build := &models.BuildRecord{
		ID:         uuid.NewString(),
		LyricsText: req.LyricsText,
		Style:      req.Style,
		AudioPath:  req.AudioPath,
		MidiPath:   req.MidiPath,
	}
	if err := h.buildRepo.Create(build); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	item := &models.QueueItem{
		BuildID:  build.ID,
		Status:   models.StatusQueued,
		Priority: req.Priority,
	}
	if err := h.queueRepo.Create(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.BroadcastFromQueueItem(item, "Build queued")

	c.JSON(http.StatusCreated, gin.H{"build": build, "queue_item": item})
}

// GetByID returns a build record, including its storyboard once completed.
func (h *BuildHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	build, err := h.buildRepo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if build == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "build not found"})
		return
	}

	c.JSON(http.StatusOK, build)
}

// GetAll returns every build record, most recent first.
func (h *BuildHandler) GetAll(c *gin.Context) {
	builds, err := h.buildRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"builds": builds})
}

// Delete removes a build record.
func (h *BuildHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.buildRepo.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "build deleted"})
}
