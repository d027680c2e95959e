package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BuildLogger handles verbose logging for one storyboard build. The core
// pkg/storyboard package never logs anything itself (spec.md §7); this is
// the host-side wrapper the worker uses to narrate each phase of
// storyboard.Build to a per-build log file, the same way the teacher's
// RenderLogger narrates each phase of video rendering. Unlike the teacher's
// logger, it also tracks how long each phase ran (closing out the previous
// phase's elapsed time whenever a new one starts, or at Close) and can emit
// a scene-count/duration summary line shaped for a Storyboard rather than a
// rendered video.
type BuildLogger struct {
	buildID   string
	logPath   string
	file      *os.File
	mu        sync.Mutex
	startTime time.Time

	currentPhase string
	phaseStart   time.Time
}

// NewBuildLogger creates a new build logger for a build ID. Deletes an
// existing log file if present and creates a new one.
func NewBuildLogger(storagePath string, buildID string) (*BuildLogger, error) {
	logDir := filepath.Join(storagePath, "logs", buildID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "log.txt")

	if _, err := os.Stat(logPath); err == nil {
		if err := os.Remove(logPath); err != nil {
			return nil, fmt.Errorf("failed to delete existing log: %w", err)
		}
	}

	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	bl := &BuildLogger{
		buildID:   buildID,
		logPath:   logPath,
		file:      file,
		startTime: time.Now(),
	}

	bl.writeHeader()

	return bl, nil
}

func (bl *BuildLogger) writeHeader() {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	header := fmt.Sprintf(`================================================================================
STORYBOARD STUDIO - BUILD LOG
Build ID: %s
Started: %s
================================================================================

`, bl.buildID, bl.startTime.Format("2006-01-02 15:04:05 MST"))

	bl.file.WriteString(header)
	bl.file.Sync()
}

// Phase logs the start of a build phase (e.g. "parse", "solve_timing",
// "llm_sync", "split_batch"). If a previous phase is still open it is
// closed out first with its own elapsed duration, so the log reads as a
// per-phase timing breakdown of the build rather than one flat timeline.
func (bl *BuildLogger) Phase(name string, description string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.closePhaseLocked()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	msg := fmt.Sprintf("\n[%s] ========== PHASE: %s ==========\n", elapsed, name)
	if description != "" {
		msg += fmt.Sprintf("Description: %s\n", description)
	}
	msg += "\n"

	bl.file.WriteString(msg)
	bl.file.Sync()

	bl.currentPhase = name
	bl.phaseStart = time.Now()
}

// closePhaseLocked writes a PHASE END line for the currently open phase, if
// any. Callers must hold bl.mu.
func (bl *BuildLogger) closePhaseLocked() {
	if bl.currentPhase == "" {
		return
	}
	phaseElapsed := time.Since(bl.phaseStart).Round(time.Millisecond)
	msg := fmt.Sprintf("[%s] PHASE END: %s (%s)\n", time.Since(bl.startTime).Round(time.Millisecond), bl.currentPhase, phaseElapsed)
	bl.file.WriteString(msg)
	bl.currentPhase = ""
}

// Info logs an informational message.
func (bl *BuildLogger) Info(format string, args ...interface{}) {
	bl.log("INFO", format, args...)
}

// Debug logs a debug message with verbose details.
func (bl *BuildLogger) Debug(format string, args ...interface{}) {
	bl.log("DEBUG", format, args...)
}

// Property logs a key-value property, e.g. diagnostic counts or a solved
// scene total.
func (bl *BuildLogger) Property(key string, value interface{}) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	msg := fmt.Sprintf("[%s] PROPERTY: %s = %v\n", elapsed, key, value)

	bl.file.WriteString(msg)
	bl.file.Sync()
}

// SceneSummary logs the shape of a solved storyboard: total scene count,
// how many of those are instrumental placeholders or batched merges, and
// the overall duration. It is the build-domain counterpart of the teacher's
// Command/Output pair, which narrated ffmpeg invocations rather than a
// solved scene list.
func (bl *BuildLogger) SceneSummary(totalScenes, instrumental, batched int, totalDurationMS uint64) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	msg := fmt.Sprintf("[%s] SCENES: %d total (%d instrumental, %d batched), %.1fs\n",
		elapsed, totalScenes, instrumental, batched, float64(totalDurationMS)/1000.0)

	bl.file.WriteString(msg)
	bl.file.Sync()
}

// Diagnostic logs one storyboard.Diagnostic emitted by a build.
func (bl *BuildLogger) Diagnostic(lineNumber uint32, message string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	msg := fmt.Sprintf("[%s] DIAGNOSTIC (line %d): %s\n", elapsed, lineNumber, message)

	bl.file.WriteString(msg)
	bl.file.Sync()
}

// Error logs an error message.
func (bl *BuildLogger) Error(format string, args ...interface{}) {
	bl.log("ERROR", format, args...)
}

// Success logs a success message.
func (bl *BuildLogger) Success(format string, args ...interface{}) {
	bl.log("SUCCESS", format, args...)
}

func (bl *BuildLogger) log(level string, format string, args ...interface{}) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	message := fmt.Sprintf(format, args...)
	msg := fmt.Sprintf("[%s] %s: %s\n", elapsed, level, message)

	bl.file.WriteString(msg)
	bl.file.Sync()
}

// Close closes the log file and writes a footer describing the outcome.
func (bl *BuildLogger) Close(success bool, finalMessage string) error {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.closePhaseLocked()

	elapsed := time.Since(bl.startTime).Round(time.Millisecond)
	endTime := time.Now()

	status := "COMPLETED SUCCESSFULLY"
	if !success {
		status = "FAILED"
	}

	footer := fmt.Sprintf(`
================================================================================
BUILD %s
Duration: %s
Completed: %s
%s
================================================================================
`, status, elapsed, endTime.Format("2006-01-02 15:04:05 MST"), finalMessage)

	bl.file.WriteString(footer)
	bl.file.Sync()

	return bl.file.Close()
}

// GetLogPath returns the path to the log file.
func (bl *BuildLogger) GetLogPath() string {
	return bl.logPath
}
