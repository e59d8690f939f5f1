// Package taskform is the state and submission controller behind the task dialog.
//
// A Controller is opened in one of four modes (create, edit, duplicate,
// subtask). It seeds the five persisted fields from the mode and the external
// defaults, tracks edits and validation, routes a confirmed submit to exactly
// one Backend operation, and guards closing behind a discard confirmation.
// It performs no I/O itself and is not safe for concurrent use: every method
// is meant to be called from the UI event loop.
package taskform

// ModeKind identifies the dialog mode.
type ModeKind int

const (
	ModeCreate ModeKind = iota
	ModeEdit
	ModeDuplicate
	ModeSubtask
)

func (k ModeKind) String() string {
	switch k {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	case ModeDuplicate:
		return "duplicate"
	case ModeSubtask:
		return "subtask"
	}
	return "unknown"
}

// Mode is the dialog mode together with the context it was opened with.
// The set of implementations is closed: CreateMode, EditMode, DuplicateMode, SubtaskMode.
type Mode interface {
	Kind() ModeKind
	isMode()
}

// Task is the subset of a task record the dialog reads.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
}

// CreateMode opens an empty dialog.
type CreateMode struct{}

// EditMode edits an existing task.
type EditMode struct {
	Task Task
}

// DuplicateMode creates a new task pre-filled from a template.
type DuplicateMode struct {
	Template Task
}

// SubtaskMode creates a task spawned from a parent run.
type SubtaskMode struct {
	ParentRunID        string
	ParentBranch       string // Working branch of the parent run
	ParentTargetBranch string // Base branch of the parent run
	InitialBaseBranch  string // Suggested base branch, may be ""
}

func (CreateMode) Kind() ModeKind    { return ModeCreate }
func (EditMode) Kind() ModeKind      { return ModeEdit }
func (DuplicateMode) Kind() ModeKind { return ModeDuplicate }
func (SubtaskMode) Kind() ModeKind   { return ModeSubtask }

func (CreateMode) isMode()    {}
func (EditMode) isMode()      {}
func (DuplicateMode) isMode() {}
func (SubtaskMode) isMode()   {}
