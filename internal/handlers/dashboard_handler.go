package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves aggregate build stats, adapted from the teacher's
// DashboardHandler (same raw-SQL aggregation style over the build_queue
// table instead of the video-render queue).
type DashboardHandler struct {
	db *sql.DB
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(db *sql.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// DashboardStats summarizes build throughput.
type DashboardStats struct {
	TotalBuilds     int `json:"total_builds"`
	QueuedItems     int `json:"queued_items"`
	ProcessingItems int `json:"processing_items"`
	CompletedToday  int `json:"completed_today"`
	ErrorsToday     int `json:"errors_today"`

	AvgBuildTime string `json:"avg_build_time"`
	SuccessRate  float64 `json:"success_rate"`

	RecentErrors []RecentError `json:"recent_errors"`
}

// RecentError names one recently failed build.
type RecentError struct {
	BuildID      string `json:"build_id"`
	ErrorMessage string `json:"error_message"`
}

func formatDuration(seconds int) string {
	if seconds < 0 {
		return "0s"
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, secs)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// GetDashboard returns aggregate build statistics.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	stats := DashboardStats{}

	if err := h.db.QueryRow("SELECT COUNT(*) FROM builds").Scan(&stats.TotalBuilds); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'queued'").Scan(&stats.QueuedItems)
	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'processing'").Scan(&stats.ProcessingItems)
	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'completed' AND DATE(completed_at) = DATE('now')").Scan(&stats.CompletedToday)
	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'failed' AND DATE(completed_at) = DATE('now')").Scan(&stats.ErrorsToday)

	var avgSeconds sql.NullFloat64
	var completedCount, failedCount int
	h.db.QueryRow(`
		SELECT AVG(CAST((julianday(completed_at) - julianday(started_at)) * 86400 AS INTEGER))
		FROM build_queue
		WHERE status = 'completed' AND started_at IS NOT NULL AND completed_at IS NOT NULL
	`).Scan(&avgSeconds)
	if avgSeconds.Valid {
		stats.AvgBuildTime = formatDuration(int(avgSeconds.Float64))
	} else {
		stats.AvgBuildTime = "N/A"
	}

	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'completed'").Scan(&completedCount)
	h.db.QueryRow("SELECT COUNT(*) FROM build_queue WHERE status = 'failed'").Scan(&failedCount)
	if completedCount+failedCount > 0 {
		stats.SuccessRate = float64(completedCount) / float64(completedCount+failedCount) * 100
	} else {
		stats.SuccessRate = 100.0
	}

	rows, err := h.db.Query(`
		SELECT build_id, error_message FROM build_queue
		WHERE status = 'failed'
		ORDER BY completed_at DESC
		LIMIT 10
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var e RecentError
			if err := rows.Scan(&e.BuildID, &e.ErrorMessage); err == nil {
				stats.RecentErrors = append(stats.RecentErrors, e)
			}
		}
	}

	c.JSON(http.StatusOK, stats)
}
