// Package events runs user hook scripts on task lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bborn/taskform/internal/db"
	"github.com/charmbracelet/log"
)

// Event types for task lifecycle
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskStarted = "task.started"
)

const hookTimeout = 30 * time.Second

// Event represents a task lifecycle event.
type Event struct {
	Type      string
	Task      *db.Task
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// Emitter runs the hook script named after each event, if one exists in its
// hooks directory. Hooks run in the background and their failures are only logged.
type Emitter struct {
	hooksDir string
	logger   *log.Logger
	wg       sync.WaitGroup
}

// New creates a new event emitter. An empty hooksDir disables hooks.
func New(hooksDir string, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Emitter{hooksDir: hooksDir, logger: logger.WithPrefix("hooks")}
}

// DefaultHooksDir returns the default hooks directory path.
func DefaultHooksDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "taskform", "hooks")
}

// Emit triggers the hook script for event.Type.
func (e *Emitter) Emit(event Event) {
	if e == nil || e.hooksDir == "" {
		return
	}
	hookPath := filepath.Join(e.hooksDir, event.Type)
	if _, err := os.Stat(hookPath); err != nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(hookPath, event)
	}()
}

// Wait blocks until every running hook has finished.
func (e *Emitter) Wait() {
	if e != nil {
		e.wg.Wait()
	}
}

func (e *Emitter) run(hookPath string, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, hookPath)
	cmd.Env = append(os.Environ(), env(event)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.Error("Hook failed", "event", event.Type, "error", err, "output", strings.TrimSpace(string(output)))
		return
	}
	e.logger.Debug("Hook executed", "event", event.Type)
}

func env(event Event) []string {
	vars := []string{
		fmt.Sprintf("TASK_EVENT=%s", event.Type),
		fmt.Sprintf("TASK_TIMESTAMP=%s", event.Timestamp.Format(time.RFC3339)),
	}
	if t := event.Task; t != nil {
		vars = append(vars,
			fmt.Sprintf("TASK_ID=%s", t.ID),
			fmt.Sprintf("TASK_TITLE=%s", t.Title),
			fmt.Sprintf("TASK_STATUS=%s", t.Status),
		)
		if t.ParentRunID != "" {
			vars = append(vars, fmt.Sprintf("TASK_PARENT_RUN=%s", t.ParentRunID))
		}
	}
	if len(event.Metadata) > 0 {
		if data, err := json.Marshal(event.Metadata); err == nil {
			vars = append(vars, fmt.Sprintf("TASK_METADATA=%s", string(data)))
		}
	}
	return vars
}

func (e *Emitter) EmitTaskCreated(task *db.Task) {
	e.Emit(Event{Type: TaskCreated, Task: task})
}

func (e *Emitter) EmitTaskUpdated(task *db.Task, imagesChanged bool) {
	e.Emit(Event{Type: TaskUpdated, Task: task, Metadata: map[string]interface{}{"images_changed": imagesChanged}})
}

// EmitTaskStarted reports a queued run for task.
func (e *Emitter) EmitTaskStarted(task *db.Task, run *db.Run) {
	e.Emit(Event{Type: TaskStarted, Task: task, Metadata: map[string]interface{}{
		"run_id":        run.ID,
		"executor":      run.Executor,
		"variant":       run.Variant,
		"target_branch": run.TargetBranch,
	}})
}
