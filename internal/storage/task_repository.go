package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

const taskColumns = `
	id, queue, action, meeting_id, user_id, payload, status, attempts, last_error,
	created_at, started_at, finished_at`

// TaskRepository is the durable sync task queue.
type TaskRepository struct {
	BaseRepository
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Enqueue appends a pending task and fills in its ID.
func (r *TaskRepository) Enqueue(ctx context.Context, t *models.SyncTask) error {
	t.Status = models.TaskStatusPending
	t.CreatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO sync_tasks (queue, action, meeting_id, user_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.Queue, t.Action, t.MeetingID, t.UserID, t.Payload, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading sync task id: %w", err)
	}
	t.ID = id

	return nil
}

// ClaimNext marks the oldest runnable task of the queue as running and returns it.
// A task is runnable when no other task for the same meeting is running, so
// tasks for one meeting execute one at a time in enqueue order. It returns nil
// when nothing is runnable.
func (r *TaskRepository) ClaimNext(ctx context.Context, queue string) (*models.SyncTask, error) {
	// The single UPDATE claims atomically; only the integer id is returned
	// because RETURNING columns carry no declared type for time decoding.
	var id int64
	err := r.DB().QueryRowContext(ctx, `
		UPDATE sync_tasks SET status = ?, attempts = attempts + 1, started_at = ?
		WHERE id = (
			SELECT t.id FROM sync_tasks t
			WHERE t.queue = ? AND t.status = ?
			AND NOT EXISTS (
				SELECT 1 FROM sync_tasks running
				WHERE running.meeting_id = t.meeting_id AND running.status = ?
			)
			ORDER BY t.id
			LIMIT 1
		)
		RETURNING id`,
		models.TaskStatusRunning, r.Now(),
		queue, models.TaskStatusPending, models.TaskStatusRunning,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming sync task: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Complete marks a task as handled.
func (r *TaskRepository) Complete(ctx context.Context, id int64) error {
	return r.finish(ctx, id, models.TaskStatusDone, nil)
}

// Fail marks a task as failed with the given reason.
func (r *TaskRepository) Fail(ctx context.Context, id int64, reason string) error {
	return r.finish(ctx, id, models.TaskStatusFailed, &reason)
}

func (r *TaskRepository) finish(ctx context.Context, id int64, status string, reason *string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE sync_tasks SET status = ?, last_error = ?, finished_at = ? WHERE id = ?
	`, status, reason, r.Now(), id)
	if err != nil {
		return fmt.Errorf("finishing sync task: %w", err)
	}
	return affected(result)
}

// ReclaimStale returns tasks stuck in running since before cutoff to pending,
// so a crashed worker's tasks are delivered again.
func (r *TaskRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE sync_tasks SET status = ?, started_at = NULL
		WHERE status = ? AND started_at < ?
	`, models.TaskStatusPending, models.TaskStatusRunning, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale tasks: %w", err)
	}
	return result.RowsAffected()
}

// PurgeFinished deletes done and failed tasks finished before cutoff.
func (r *TaskRepository) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM sync_tasks WHERE status IN (?, ?) AND finished_at < ?
	`, models.TaskStatusDone, models.TaskStatusFailed, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purging finished tasks: %w", err)
	}
	return result.RowsAffected()
}

// GetByID retrieves a task by ID. It returns nil when no row exists.
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*models.SyncTask, error) {
	t, err := scanTask(r.DB().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync task: %w", err)
	}
	return t, nil
}

// List returns tasks newest first, optionally filtered by status and meeting.
func (r *TaskRepository) List(ctx context.Context, status, meetingID string, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_tasks WHERE 1=1`
	var args []any

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if meetingID != "" {
		query += " AND meeting_id = ?"
		args = append(args, meetingID)
	}
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

// CountByStatus returns the number of tasks per status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT status, COUNT(*) FROM sync_tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting sync tasks: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		models.TaskStatusPending: 0,
		models.TaskStatusRunning: 0,
		models.TaskStatusDone:    0,
		models.TaskStatusFailed:  0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning task count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func scanTask(row rowScanner) (*models.SyncTask, error) {
	t := &models.SyncTask{}
	err := row.Scan(
		&t.ID, &t.Queue, &t.Action, &t.MeetingID, &t.UserID, &t.Payload, &t.Status,
		&t.Attempts, &t.LastError, &t.CreatedAt, &t.StartedAt, &t.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
