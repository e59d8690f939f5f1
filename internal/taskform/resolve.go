package taskform

import (
	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/gitrepo"
	"github.com/charmbracelet/log"
)

// Defaults is the externally supplied data the dialog defaults from.
type Defaults struct {
	Profile  *executor.ProfileID // default execution profile
	Profiles []executor.ProfileID
	Branches []gitrepo.Branch // nil until the branch list has loaded
}

// Resolver computes initial field values for a mode.
// The zero value is ready to use and does not log.
type Resolver struct {
	Logger *log.Logger
}

// Resolve returns the initial values for mode given defaults.
// The result depends only on its arguments.
func (r Resolver) Resolve(mode Mode, defaults Defaults) Values {
	v := Values{
		Status:  StatusTodo,
		Profile: cloneProfile(defaults.Profile),
		Branch:  r.Branch(mode, defaults.Branches),
	}

	switch m := mode.(type) {
	case EditMode:
		v.Title = m.Task.Title
		v.Description = m.Task.Description
		v.Status = m.Task.Status
		if v.Status == "" {
			v.Status = StatusTodo
		}
	case DuplicateMode:
		v.Title = m.Template.Title
		v.Description = m.Template.Description
	case CreateMode, SubtaskMode:
	}
	return v
}

// Branch picks the default branch for mode from the available branches:
// the suggested base branch of a subtask, then the parent run's branch or its
// target branch, then the current branch, then the first branch.
// Returns "" when no branches are available.
func (r Resolver) Branch(mode Mode, branches []gitrepo.Branch) string {
	if len(branches) == 0 {
		return ""
	}

	if m, ok := mode.(SubtaskMode); ok {
		if m.InitialBaseBranch != "" {
			if hasBranch(branches, m.InitialBaseBranch) {
				return m.InitialBaseBranch
			}
			r.debug("Suggested base branch not found", "branch", m.InitialBaseBranch)
		}
		for _, candidate := range []string{m.ParentBranch, m.ParentTargetBranch} {
			if candidate == "" {
				continue
			}
			if hasBranch(branches, candidate) {
				return candidate
			}
			r.debug("Parent run branch not found", "branch", candidate, "run", m.ParentRunID)
		}
	}

	for _, b := range branches {
		if b.IsCurrent {
			return b.Name
		}
	}
	return branches[0].Name
}

func (r Resolver) debug(msg string, keyvals ...interface{}) {
	if r.Logger != nil {
		r.Logger.Debug(msg, keyvals...)
	}
}

func hasBranch(branches []gitrepo.Branch, name string) bool {
	for _, b := range branches {
		if b.Name == name {
			return true
		}
	}
	return false
}
