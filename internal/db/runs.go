package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Run is one execution attempt of a task by an agent.
type Run struct {
	ID           string
	TaskID       string
	Executor     string
	Variant      string
	Branch       string // Working branch the run creates ("" until the worker assigns it)
	TargetBranch string // Base branch the run starts from and merges back into
	Prompt       string
	Status       string
	CreatedAt    LocalTime
}

// Run statuses
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// CreateRun records a new run.
func (db *DB) CreateRun(r *Run) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func insertRun(tx *sql.Tx, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RunStatusQueued
	}
	_, err := tx.Exec(`
		INSERT INTO runs (id, task_id, executor, variant, branch, target_branch, prompt, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskID, r.Executor, r.Variant, r.Branch, r.TargetBranch, r.Prompt, r.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	r := &Run{}
	err := db.QueryRow(`
		SELECT id, task_id, executor, COALESCE(variant, ''), COALESCE(branch, ''),
		       target_branch, COALESCE(prompt, ''), status, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.TaskID, &r.Executor, &r.Variant, &r.Branch,
		&r.TargetBranch, &r.Prompt, &r.Status, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// ListRunsForTask returns a task's runs, oldest first.
func (db *DB) ListRunsForTask(taskID string) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT id, task_id, executor, COALESCE(variant, ''), COALESCE(branch, ''),
		       target_branch, COALESCE(prompt, ''), status, created_at
		FROM runs WHERE task_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Executor, &r.Variant, &r.Branch,
			&r.TargetBranch, &r.Prompt, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
