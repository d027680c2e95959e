package database

import (
	"database/sql"

	"github.com/nlaakstudios/storyboard-studio/internal/models"
)

// QueueRepository handles build_queue database operations, kept from the
// teacher's QueueRepository (same priority-ordered polling shape),
// generalized from song_id to build_id.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueSelectColumns = `id, build_id, status, priority,
		COALESCE(current_step, '') as current_step,
		COALESCE(error_message, '') as error_message,
		COALESCE(retry_count, 0) as retry_count,
		queued_at, started_at, completed_at`

// GetAll returns all queue items.
func (r *QueueRepository) GetAll() ([]models.QueueItem, error) {
	query := `SELECT ` + queueSelectColumns + ` FROM build_queue ORDER BY priority DESC, queued_at ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		if err := scanQueueItem(rows, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// GetByID returns a queue item by ID.
func (r *QueueRepository) GetByID(id int) (*models.QueueItem, error) {
	query := `SELECT ` + queueSelectColumns + ` FROM build_queue WHERE id = ?`

	var item models.QueueItem
	row := r.db.QueryRow(query, id)
	if err := scanQueueItem(row, &item); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Create enqueues a new build.
func (r *QueueRepository) Create(item *models.QueueItem) error {
	query := `INSERT INTO build_queue (build_id, status, priority) VALUES (?, ?, ?)`

	result, err := r.db.Exec(query, item.BuildID, item.Status, item.Priority)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	item.ID = int(id)
	return nil
}

// Update updates an existing queue item.
func (r *QueueRepository) Update(item *models.QueueItem) error {
	query := `UPDATE build_queue SET status=?, priority=?,
		current_step=?, error_message=?, retry_count=?,
		started_at=?, completed_at=?
		WHERE id=?`

	_, err := r.db.Exec(query,
		item.Status, item.Priority,
		item.CurrentStep, item.ErrorMessage, item.RetryCount,
		item.StartedAt, item.CompletedAt,
		item.ID,
	)
	return err
}

// Delete removes a queue item.
func (r *QueueRepository) Delete(id int) error {
	_, err := r.db.Exec("DELETE FROM build_queue WHERE id=?", id)
	return err
}

// GetNextPending returns the next queued build, priority-first.
func (r *QueueRepository) GetNextPending() (*models.QueueItem, error) {
	query := `SELECT ` + queueSelectColumns + `
		FROM build_queue
		WHERE status = ?
		ORDER BY priority DESC, queued_at ASC
		LIMIT 1`

	var item models.QueueItem
	row := r.db.QueryRow(query, models.StatusQueued)
	if err := scanQueueItem(row, &item); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func scanQueueItem(row rowScanner, item *models.QueueItem) error {
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&item.ID, &item.BuildID, &item.Status, &item.Priority,
		&item.CurrentStep, &item.ErrorMessage, &item.RetryCount,
		&item.QueuedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return err
	}
	if startedAt.Valid {
		t := startedAt.Time
		item.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return nil
}
