package taskform

import (
	"github.com/bborn/taskform/internal/executor"
)

// Status is a task status.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusInReview   Status = "inreview"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled}

// Label returns the display label for a status.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusInReview:
		return "In Review"
	case StatusDone:
		return "Done"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Field identifies one persisted form field.
type Field int

const (
	FieldTitle Field = iota
	FieldDescription
	FieldStatus
	FieldProfile
	FieldBranch

	numFields
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldDescription:
		return "description"
	case FieldStatus:
		return "status"
	case FieldProfile:
		return "profile"
	case FieldBranch:
		return "branch"
	}
	return "unknown"
}

// Values holds the five persisted fields. Every field always has a value,
// including fields the current mode hides.
type Values struct {
	Title       string
	Description string
	Status      Status
	Profile     *executor.ProfileID // nil when no profile is selected
	Branch      string
}

// Equal reports whether v and o hold the same values.
func (v Values) Equal(o Values) bool {
	for f := Field(0); f < numFields; f++ {
		if !v.fieldEqual(o, f) {
			return false
		}
	}
	return true
}

func (v Values) fieldEqual(o Values, f Field) bool {
	switch f {
	case FieldTitle:
		return v.Title == o.Title
	case FieldDescription:
		return v.Description == o.Description
	case FieldStatus:
		return v.Status == o.Status
	case FieldProfile:
		if v.Profile == nil || o.Profile == nil {
			return v.Profile == nil && o.Profile == nil
		}
		return *v.Profile == *o.Profile
	case FieldBranch:
		return v.Branch == o.Branch
	}
	return true
}

// copyField copies field f from src into v.
func (v *Values) copyField(src Values, f Field) {
	switch f {
	case FieldTitle:
		v.Title = src.Title
	case FieldDescription:
		v.Description = src.Description
	case FieldStatus:
		v.Status = src.Status
	case FieldProfile:
		v.Profile = cloneProfile(src.Profile)
	case FieldBranch:
		v.Branch = src.Branch
	}
}

func cloneProfile(p *executor.ProfileID) *executor.ProfileID {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Store holds the field values, the snapshot they started from, and per-field
// touched (changed by the user) and blurred flags.
type Store struct {
	initial Values
	values  Values
	touched [numFields]bool
	blurred [numFields]bool
}

// NewStore creates a store seeded with initial.
func NewStore(initial Values) *Store {
	s := &Store{}
	s.ResetTo(initial)
	return s
}

// Values returns the current values.
func (s *Store) Values() Values {
	v := s.values
	v.Profile = cloneProfile(v.Profile)
	return v
}

// Initial returns the snapshot the store was last reset to.
func (s *Store) Initial() Values {
	v := s.initial
	v.Profile = cloneProfile(v.Profile)
	return v
}

func (s *Store) SetTitle(title string) {
	s.values.Title = title
	s.touched[FieldTitle] = true
}

func (s *Store) SetDescription(description string) {
	s.values.Description = description
	s.touched[FieldDescription] = true
}

func (s *Store) SetStatus(status Status) {
	s.values.Status = status
	s.touched[FieldStatus] = true
}

func (s *Store) SetProfile(profile *executor.ProfileID) {
	s.values.Profile = cloneProfile(profile)
	s.touched[FieldProfile] = true
}

func (s *Store) SetBranch(branch string) {
	s.values.Branch = branch
	s.touched[FieldBranch] = true
}

// Blur records that the user left field f.
func (s *Store) Blur(f Field) {
	s.blurred[f] = true
}

// Touched reports whether the user changed field f since the last reset.
// Setting a field back to its initial value still counts as touched.
func (s *Store) Touched(f Field) bool {
	return s.touched[f]
}

// Blurred reports whether the user left field f since the last reset.
func (s *Store) Blurred(f Field) bool {
	return s.blurred[f]
}

// FieldDirty reports whether field f differs from the initial snapshot.
func (s *Store) FieldDirty(f Field) bool {
	return !s.values.fieldEqual(s.initial, f)
}

// Dirty reports whether any field differs from the initial snapshot.
func (s *Store) Dirty() bool {
	return !s.values.Equal(s.initial)
}

// ResetTo replaces both the snapshot and the values with snapshot and clears
// the touched and blurred flags.
func (s *Store) ResetTo(snapshot Values) {
	snapshot.Profile = cloneProfile(snapshot.Profile)
	s.initial = snapshot
	s.values = snapshot
	s.values.Profile = cloneProfile(snapshot.Profile)
	s.touched = [numFields]bool{}
	s.blurred = [numFields]bool{}
}

// Reset returns the values to the initial snapshot.
func (s *Store) Reset() {
	s.ResetTo(s.initial)
}

// applyDefault overwrites field f (value and snapshot) from defaults unless the
// user has touched it. It reports whether the field was written.
func (s *Store) applyDefault(f Field, defaults Values) bool {
	if s.touched[f] {
		return false
	}
	s.values.copyField(defaults, f)
	s.initial.copyField(defaults, f)
	return true
}
