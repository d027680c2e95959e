package database

import (
	"database/sql"

	"github.com/nlaakstudios/storyboard-studio/internal/models"
)

// BuildRepository handles build record database operations, adapted from
// the teacher's SongRepository: same connection-holding struct and
// COALESCE-guarded SELECT shape, generalized to the builds table.
type BuildRepository struct {
	db *sql.DB
}

// NewBuildRepository creates a new build repository.
func NewBuildRepository(db *sql.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// GetAll returns all build records, most recent first.
func (r *BuildRepository) GetAll() ([]models.BuildRecord, error) {
	query := `SELECT id, lyrics_text,
		COALESCE(style, '') as style,
		COALESCE(audio_path, '') as audio_path,
		COALESCE(midi_path, '') as midi_path,
		COALESCE(storyboard_json, '') as storyboard_json,
		COALESCE(diagnostics_json, '') as diagnostics_json,
		COALESCE(error_message, '') as error_message,
		created_at, updated_at, completed_at
		FROM builds ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []models.BuildRecord
	for rows.Next() {
		var b models.BuildRecord
		if err := scanBuildRecord(rows, &b); err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, nil
}

// GetByID returns a build record by ID.
func (r *BuildRepository) GetByID(id string) (*models.BuildRecord, error) {
	query := `SELECT id, lyrics_text,
		COALESCE(style, '') as style,
		COALESCE(audio_path, '') as audio_path,
		COALESCE(midi_path, '') as midi_path,
		COALESCE(storyboard_json, '') as storyboard_json,
		COALESCE(diagnostics_json, '') as diagnostics_json,
		COALESCE(error_message, '') as error_message,
		created_at, updated_at, completed_at
		FROM builds WHERE id = ?`

	var b models.BuildRecord
	row := r.db.QueryRow(query, id)
	if err := scanBuildRecord(row, &b); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts a new build record.
func (r *BuildRepository) Create(b *models.BuildRecord) error {
	query := `INSERT INTO builds (id, lyrics_text, style, audio_path, midi_path)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, b.ID, b.LyricsText, b.Style, b.AudioPath, b.MidiPath)
	return err
}

// UpdateResult stores a completed build's serialized storyboard and
// diagnostics.
func (r *BuildRepository) UpdateResult(id, storyboardJSON, diagnosticsJSON string) error {
	query := `UPDATE builds SET storyboard_json=?, diagnostics_json=?,
		error_message='', updated_at=CURRENT_TIMESTAMP, completed_at=CURRENT_TIMESTAMP
		WHERE id=?`
	_, err := r.db.Exec(query, storyboardJSON, diagnosticsJSON, id)
	return err
}

// UpdateError stores a failed build's error message.
func (r *BuildRepository) UpdateError(id, errMessage string) error {
	query := `UPDATE builds SET error_message=?, updated_at=CURRENT_TIMESTAMP,
		completed_at=CURRENT_TIMESTAMP WHERE id=?`
	_, err := r.db.Exec(query, errMessage, id)
	return err
}

// Delete removes a build record.
func (r *BuildRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM builds WHERE id=?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuildRecord(rows rowScanner, b *models.BuildRecord) error {
	var completedAt sql.NullTime
	err := rows.Scan(
		&b.ID, &b.LyricsText, &b.Style, &b.AudioPath, &b.MidiPath,
		&b.StoryboardJSON, &b.DiagnosticsJSON, &b.ErrorMessage,
		&b.CreatedAt, &b.UpdatedAt, &completedAt,
	)
	if err != nil {
		return err
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return nil
}
