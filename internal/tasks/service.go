// Package tasks persists dialog submissions: it implements taskform.Backend
// on top of the database, the run executor and the image store.
package tasks

import (
	"context"
	"io"
	"sync"

	"github.com/bborn/taskform/internal/db"
	"github.com/bborn/taskform/internal/events"
	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/images"
	"github.com/bborn/taskform/internal/taskform"
	"github.com/charmbracelet/log"
)

// Service implements taskform.Backend.
type Service struct {
	db       *db.DB
	executor *executor.Executor
	images   *images.Store
	events   *events.Emitter
	logger   *log.Logger

	mu       sync.Mutex
	detached map[string][]string // task id -> images unlinked by its last update
}

var _ taskform.Backend = (*Service)(nil)

// New creates a service. A nil logger discards output.
func New(database *db.DB, exec *executor.Executor, store *images.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Service{
		db:       database,
		executor: exec,
		images:   store,
		logger:   logger.WithPrefix("tasks"),
		detached: map[string][]string{},
	}
}

// SetEmitter sets the emitter that runs lifecycle hooks.
func (s *Service) SetEmitter(e *events.Emitter) {
	s.events = e
}

// UpdateTask saves an edited task.
func (s *Service) UpdateTask(ctx context.Context, id string, in taskform.UpdateTaskInput) (*taskform.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.db.GetTask(id)
	if err != nil {
		return nil, err
	}
	t.Title = in.Title
	t.Body = in.Description
	t.Status = string(in.Status)
	detached, err := s.db.UpdateTask(t, in.ImageIDs)
	if err != nil {
		return nil, err
	}
	if len(detached) > 0 {
		s.mu.Lock()
		s.detached[t.ID] = append(s.detached[t.ID], detached...)
		s.mu.Unlock()
	}
	s.logger.Info("Task updated", "task", t.ID, "status", t.Status, "images", len(in.ImageIDs))
	s.events.EmitTaskUpdated(t, in.ImageIDs != nil)
	return ToTask(t), nil
}

// CreateTask creates a task without starting it.
func (s *Service) CreateTask(ctx context.Context, in taskform.CreateTaskInput) (*taskform.Task, error) {
	t, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	return ToTask(t), nil
}

// CreateAndStart creates a task and queues its first run. Nothing is stored
// when the run cannot be queued.
func (s *Service) CreateAndStart(ctx context.Context, in taskform.CreateTaskInput, profile executor.ProfileID, branch string) (*taskform.Task, error) {
	t := newTask(in)
	run, err := s.executor.CreateAndStart(ctx, t, in.ImageIDs, profile, branch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Task started", "task", t.ID, "run", run.ID, "parent_run", t.ParentRunID, "images", len(in.ImageIDs))
	s.events.EmitTaskCreated(t)
	s.events.EmitTaskStarted(t, run)
	return ToTask(t), nil
}

// CleanupImages removes the images the last update of taskID unlinked,
// unless another task still links them.
func (s *Service) CleanupImages(ctx context.Context, taskID string) error {
	s.mu.Lock()
	ids := s.detached[taskID]
	delete(s.detached, taskID)
	s.mu.Unlock()

	n, err := s.images.Cleanup(ctx, ids)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("Removed detached images", "task", taskID, "count", n)
	}
	return nil
}

// Upload stores an image file so it can be attached.
func (s *Service) Upload(ctx context.Context, path string) (taskform.Image, error) {
	img, err := s.images.Upload(ctx, path)
	if err != nil {
		return taskform.Image{}, err
	}
	return ToImage(img), nil
}

func (s *Service) create(ctx context.Context, in taskform.CreateTaskInput) (*db.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := newTask(in)
	if err := s.db.CreateTask(t, in.ImageIDs); err != nil {
		return nil, err
	}
	s.logger.Info("Task created", "task", t.ID, "parent_run", t.ParentRunID, "images", len(in.ImageIDs))
	s.events.EmitTaskCreated(t)
	return t, nil
}

func newTask(in taskform.CreateTaskInput) *db.Task {
	return &db.Task{
		Title:       in.Title,
		Body:        in.Description,
		Status:      db.StatusTodo,
		ParentRunID: in.ParentRunID,
	}
}

// EditMode loads a task for editing along with its attached images.
func (s *Service) EditMode(id string) (taskform.EditMode, []taskform.Image, error) {
	t, err := s.db.GetTask(id)
	if err != nil {
		return taskform.EditMode{}, nil, err
	}
	imgs, err := s.db.ListTaskImages(id)
	if err != nil {
		return taskform.EditMode{}, nil, err
	}
	attached := make([]taskform.Image, 0, len(imgs))
	for _, img := range imgs {
		attached = append(attached, ToImage(img))
	}
	return taskform.EditMode{Task: *ToTask(t)}, attached, nil
}

// DuplicateMode loads a task to use as a template.
func (s *Service) DuplicateMode(id string) (taskform.DuplicateMode, error) {
	t, err := s.db.GetTask(id)
	if err != nil {
		return taskform.DuplicateMode{}, err
	}
	return taskform.DuplicateMode{Template: *ToTask(t)}, nil
}

// SubtaskMode builds a subtask dialog for the run with the given id.
// base, when set, is the suggested base branch.
func (s *Service) SubtaskMode(runID, base string) (taskform.SubtaskMode, error) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		return taskform.SubtaskMode{}, err
	}
	return taskform.SubtaskMode{
		ParentRunID:        run.ID,
		ParentBranch:       run.Branch,
		ParentTargetBranch: run.TargetBranch,
		InitialBaseBranch:  base,
	}, nil
}

// ToTask converts a stored task.
func ToTask(t *db.Task) *taskform.Task {
	return &taskform.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Body,
		Status:      taskform.Status(t.Status),
	}
}

// ToImage converts a stored image.
func ToImage(img *db.Image) taskform.Image {
	return taskform.Image{
		ID:           img.ID,
		OriginalName: img.OriginalName,
		FilePath:     img.FilePath,
	}
}
