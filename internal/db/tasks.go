package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Task represents a task in the database.
type Task struct {
	ID          string
	Title       string
	Body        string
	Status      string
	ParentRunID string // Run this task was spawned from ("" for top-level tasks)
	CreatedAt   LocalTime
	UpdatedAt   LocalTime
}

// Task statuses
const (
	StatusTodo       = "todo"
	StatusInProgress = "inprogress"
	StatusInReview   = "inreview"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// Statuses lists every task status in board order.
var Statuses = []string{StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled}

// IsValidStatus reports whether s is a known task status.
func IsValidStatus(s string) bool {
	for _, status := range Statuses {
		if status == s {
			return true
		}
	}
	return false
}

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// CreateTask creates a new task and links the given images to it in one transaction.
// A nil or empty imageIDs links nothing.
func (db *DB) CreateTask(t *Task, imageIDs []string) error {
	return db.createTask(t, imageIDs, nil)
}

// CreateTaskWithRun creates a task, links its images and records its first
// run in one transaction. Either all of it is stored or none of it.
func (db *DB) CreateTaskWithRun(t *Task, imageIDs []string, r *Run) error {
	return db.createTask(t, imageIDs, r)
}

func (db *DB) createTask(t *Task, imageIDs []string, r *Run) error {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if !IsValidStatus(t.Status) {
		return fmt.Errorf("create task: invalid status %q", t.Status)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO tasks (id, title, body, status, parent_run_id)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Body, t.Status, t.ParentRunID); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := linkImages(tx, t.ID, imageIDs); err != nil {
		return err
	}

	if r != nil {
		r.TaskID = t.ID
		if err := insertRun(tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*Task, error) {
	t := &Task{}
	err := db.QueryRow(`
		SELECT id, title, COALESCE(body, ''), status, COALESCE(parent_run_id, ''),
		       created_at, updated_at
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.Title, &t.Body, &t.Status, &t.ParentRunID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// ListTasksOptions filters ListTasks.
type ListTasksOptions struct {
	Status string
	Limit  int
}

// ListTasks retrieves tasks, newest first.
func (db *DB) ListTasks(opts ListTasksOptions) ([]*Task, error) {
	query := `
		SELECT id, title, COALESCE(body, ''), status, COALESCE(parent_run_id, ''),
		       created_at, updated_at
		FROM tasks`
	var args []interface{}
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, opts.Status)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		if err := rows.Scan(&t.ID, &t.Title, &t.Body, &t.Status, &t.ParentRunID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask updates a task's title, body and status.
// When imageIDs is non-nil the task's image links are replaced by it;
// nil leaves the existing links untouched. It returns the ids of images
// that were linked to the task before and are not anymore.
func (db *DB) UpdateTask(t *Task, imageIDs []string) ([]string, error) {
	if !IsValidStatus(t.Status) {
		return nil, fmt.Errorf("update task: invalid status %q", t.Status)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE tasks SET title = ?, body = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, t.Title, t.Body, t.Status, t.ID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
	}

	var detached []string
	if imageIDs != nil {
		previous, err := linkedImageIDs(tx, t.ID)
		if err != nil {
			return nil, err
		}
		keep := make(map[string]bool, len(imageIDs))
		for _, id := range imageIDs {
			keep[id] = true
		}
		for _, id := range previous {
			if !keep[id] {
				detached = append(detached, id)
			}
		}

		if _, err := tx.Exec("DELETE FROM task_images WHERE task_id = ?", t.ID); err != nil {
			return nil, fmt.Errorf("clear task images: %w", err)
		}
		if err := linkImages(tx, t.ID, imageIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit task: %w", err)
	}
	return detached, nil
}

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting sets a setting value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?
	`, key, value, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
