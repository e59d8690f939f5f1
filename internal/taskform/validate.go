package taskform

import "strings"

// FieldErrors maps fields to the message explaining why they are invalid.
// An empty map means the form can be submitted.
type FieldErrors map[Field]string

// Validate checks every field rule against v. Profile and branch are only
// required when a non-edit dialog will start a run.
func Validate(v Values, kind ModeKind, autoStart bool) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(v.Title) == "" {
		errs[FieldTitle] = "Title is required"
	}
	if kind != ModeEdit && autoStart {
		if v.Profile == nil {
			errs[FieldProfile] = "Select an execution profile to start a run"
		}
		if v.Branch == "" {
			errs[FieldBranch] = "Select a base branch to start a run"
		}
	}
	return errs
}

// CanSubmit is the submit gate. The submit button and the submit shortcut
// must both go through it.
func CanSubmit(v Values, kind ModeKind, autoStart bool) bool {
	return len(Validate(v, kind, autoStart)) == 0
}
