// Package executor manages execution profiles and starts agent runs for tasks.
package executor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bborn/taskform/internal/db"
	"github.com/charmbracelet/log"
)

// Executor records runs for the background agent worker to pick up.
type Executor struct {
	db     *db.DB
	logger *log.Logger
}

// New creates a new executor that does not log.
func New(database *db.DB) *Executor {
	return &Executor{
		db:     database,
		logger: log.NewWithOptions(io.Discard, log.Options{Prefix: "executor"}),
	}
}

// NewWithLogger creates an executor that logs through logger.
func NewWithLogger(database *db.DB, logger *log.Logger) *Executor {
	if logger == nil {
		return New(database)
	}
	return &Executor{
		db:     database,
		logger: logger.WithPrefix("executor"),
	}
}

// CreateAndStart stores a new task in progress together with its first
// queued run, based on baseBranch. The task, its image links and the run are
// written in one transaction, so a failure stores nothing.
func (e *Executor) CreateAndStart(ctx context.Context, task *db.Task, imageIDs []string, profile ProfileID, baseBranch string) (*db.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile.Executor == "" {
		return nil, fmt.Errorf("start run: missing executor")
	}
	if baseBranch == "" {
		return nil, fmt.Errorf("start run: missing base branch")
	}

	task.Status = db.StatusInProgress
	run := &db.Run{
		Executor:     profile.Executor,
		Variant:      profile.Variant,
		TargetBranch: baseBranch,
		Prompt:       InitialPrompt(task),
		Status:       db.RunStatusQueued,
	}
	if err := e.db.CreateTaskWithRun(task, imageIDs, run); err != nil {
		task.Status = db.StatusTodo
		return nil, fmt.Errorf("start run: %w", err)
	}

	e.logger.Info("Run queued", "task", task.ID, "run", run.ID, "profile", profile.String(), "base", baseBranch)
	return run, nil
}

// InitialPrompt builds the prompt an agent receives for a task's first run.
func InitialPrompt(task *db.Task) string {
	body := strings.TrimSpace(task.Body)
	if body == "" {
		return task.Title
	}
	return task.Title + "\n\n" + body
}
