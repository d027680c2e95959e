package models

import "time"

// BuildRecord is the persisted row for one storyboard build: its inputs,
// its serialized result, and bookkeeping the host needs that the core
// storyboard.Storyboard value has no reason to carry (spec.md §6 treats
// the host's chosen serialization as its own boundary).
type BuildRecord struct {
	ID              string     `json:"id" db:"id"`
	LyricsText      string     `json:"lyrics_text" db:"lyrics_text"`
	Style           string     `json:"style" db:"style"`
	AudioPath       string     `json:"audio_path,omitempty" db:"audio_path"`
	MidiPath        string     `json:"midi_path,omitempty" db:"midi_path"`
	StoryboardJSON  string     `json:"storyboard_json,omitempty" db:"storyboard_json"`
	DiagnosticsJSON string     `json:"diagnostics_json,omitempty" db:"diagnostics_json"`
	ErrorMessage    string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
}

// QueueItem represents a queued storyboard build job.
type QueueItem struct {
	ID       int    `json:"id" db:"id"`
	BuildID  string `json:"build_id" db:"build_id"`
	Status   string `json:"status" db:"status"`
	Priority int    `json:"priority" db:"priority"`

	CurrentStep  string `json:"current_step" db:"current_step"`
	ErrorMessage string `json:"error_message" db:"error_message"`
	RetryCount   int    `json:"retry_count" db:"retry_count"`

	QueuedAt    time.Time  `json:"queued_at" db:"queued_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// Queue status constants.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRetrying   = "retrying"
)
