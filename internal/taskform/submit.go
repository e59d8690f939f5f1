package taskform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bborn/taskform/internal/executor"
)

// Submission errors
var (
	// ErrSubmitting is returned when a submit is requested while one is in flight.
	ErrSubmitting = errors.New("submission already in progress")
	// ErrInvalid is returned when the submit gate is closed.
	ErrInvalid = errors.New("form has validation errors")
	// ErrPrecondition is returned when a run would start without a profile or branch.
	ErrPrecondition = errors.New("missing execution profile or branch")
	// ErrClosed is returned by operations on a closed dialog.
	ErrClosed = errors.New("dialog is closed")
)

// State is the submission state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Operation is the backend call a submission makes.
type Operation int

const (
	OpUpdate Operation = iota
	OpCreateAndStart
	OpCreate
)

func (o Operation) String() string {
	switch o {
	case OpUpdate:
		return "update"
	case OpCreateAndStart:
		return "create-and-start"
	case OpCreate:
		return "create"
	}
	return "unknown"
}

// UpdateTaskInput is the payload of an edit. A nil ImageIDs leaves the
// task's images unchanged.
type UpdateTaskInput struct {
	Title       string
	Description string
	Status      Status
	ImageIDs    []string
}

// CreateTaskInput is the payload of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	ParentRunID string // set only for subtasks
	ImageIDs    []string
}

// Backend performs the operations a submission routes to.
type Backend interface {
	UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*Task, error)
	CreateAndStart(ctx context.Context, in CreateTaskInput, profile executor.ProfileID, branch string) (*Task, error)
	CreateTask(ctx context.Context, in CreateTaskInput) (*Task, error)
	// CleanupImages removes attachments no longer referenced after an edit.
	CleanupImages(ctx context.Context, taskID string) error
}

// Submission is one routed submit, built on the event loop and run off it.
type Submission struct {
	Op      Operation
	TaskID  string // edit only
	Update  UpdateTaskInput
	Create  CreateTaskInput
	Profile executor.ProfileID // create-and-start only
	Branch  string             // create-and-start only
}

// Result is the outcome of Submission.Run.
type Result struct {
	Task       *Task
	Err        error
	CleanupErr error // edit-mode attachment cleanup failure; does not fail the submission
}

// Run invokes the submission's backend operation. It blocks and may be called
// from any goroutine.
func (s *Submission) Run(ctx context.Context, b Backend) Result {
	var res Result
	switch s.Op {
	case OpUpdate:
		res.Task, res.Err = b.UpdateTask(ctx, s.TaskID, s.Update)
		if res.Err == nil {
			res.CleanupErr = b.CleanupImages(ctx, s.TaskID)
		}
	case OpCreateAndStart:
		res.Task, res.Err = b.CreateAndStart(ctx, s.Create, s.Profile, s.Branch)
	case OpCreate:
		res.Task, res.Err = b.CreateTask(ctx, s.Create)
	default:
		res.Err = fmt.Errorf("unknown operation %d", s.Op)
	}
	return res
}

// route builds the submission for the current form. defaultProfile is used
// when a run is started and no profile is selected.
func route(mode Mode, v Values, autoStart bool, att *Attachments, defaultProfile *executor.ProfileID) (*Submission, error) {
	draft := CreateTaskInput{
		Title:       v.Title,
		Description: v.Description,
		ImageIDs:    att.NewIDs(),
	}

	switch m := mode.(type) {
	case EditMode:
		return &Submission{
			Op:     OpUpdate,
			TaskID: m.Task.ID,
			Update: UpdateTaskInput{
				Title:       v.Title,
				Description: v.Description,
				Status:      v.Status,
				ImageIDs:    att.IDs(),
			},
		}, nil
	case SubtaskMode:
		draft.ParentRunID = m.ParentRunID
	case CreateMode, DuplicateMode:
	}

	if !autoStart {
		return &Submission{Op: OpCreate, Create: draft}, nil
	}

	profile := v.Profile
	if profile == nil {
		profile = defaultProfile
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no execution profile", ErrPrecondition)
	}
	if v.Branch == "" {
		return nil, fmt.Errorf("%w: no branch", ErrPrecondition)
	}
	return &Submission{
		Op:      OpCreateAndStart,
		Create:  draft,
		Profile: *profile,
		Branch:  v.Branch,
	}, nil
}
