package taskform

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/gitrepo"
)

type call struct {
	op      Operation
	taskID  string
	update  UpdateTaskInput
	create  CreateTaskInput
	profile executor.ProfileID
	branch  string
}

type fakeBackend struct {
	calls      []call
	cleanups   []string
	err        error
	cleanupErr error
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*Task, error) {
	f.calls = append(f.calls, call{op: OpUpdate, taskID: id, update: in})
	if f.err != nil {
		return nil, f.err
	}
	return &Task{ID: id, Title: in.Title, Description: in.Description, Status: in.Status}, nil
}

func (f *fakeBackend) CreateAndStart(ctx context.Context, in CreateTaskInput, profile executor.ProfileID, branch string) (*Task, error) {
	f.calls = append(f.calls, call{op: OpCreateAndStart, create: in, profile: profile, branch: branch})
	if f.err != nil {
		return nil, f.err
	}
	return &Task{ID: "new", Title: in.Title, Description: in.Description, Status: StatusInProgress}, nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, in CreateTaskInput) (*Task, error) {
	f.calls = append(f.calls, call{op: OpCreate, create: in})
	if f.err != nil {
		return nil, f.err
	}
	return &Task{ID: "new", Title: in.Title, Description: in.Description, Status: StatusTodo}, nil
}

func (f *fakeBackend) CleanupImages(ctx context.Context, taskID string) error {
	f.cleanups = append(f.cleanups, taskID)
	return f.cleanupErr
}

func newController(mode Mode, defaults Defaults) (*Controller, *int) {
	closed := 0
	c := New(Config{
		Mode:     mode,
		Defaults: defaults,
		OnClose:  func() { closed++ },
	})
	return c, &closed
}

func TestNewDefaultsToCreate(t *testing.T) {
	c := New(Config{})
	if c.Mode().Kind() != ModeCreate {
		t.Errorf("Mode() = %s, want create", c.Mode().Kind())
	}
	if !c.AutoStart() {
		t.Error("expected auto-start on by default")
	}
	if c.State() != StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
}

func TestCreateAndStart(t *testing.T) {
	c, closed := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("Fix login")
	c.SetDescription("Users cannot sign in")

	b := &fakeBackend{}
	task, err := c.Submit(context.Background(), b)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if task == nil || task.Title != "Fix login" {
		t.Fatalf("Submit() task = %+v", task)
	}

	if len(b.calls) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(b.calls))
	}
	got := b.calls[0]
	if got.op != OpCreateAndStart || got.profile != claude || got.branch != "dev" {
		t.Errorf("unexpected call %+v", got)
	}
	if got.create.ImageIDs != nil {
		t.Errorf("expected nil image ids, got %v", got.create.ImageIDs)
	}
	if c.State() != StateDone || !c.Closed() || *closed != 1 {
		t.Errorf("expected dialog closed once, state=%s closed=%v count=%d", c.State(), c.Closed(), *closed)
	}
}

// Scenario B
func TestCreateWithoutAutoStart(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Branches: nil})
	c.SetTitle("Write docs")
	c.SetAutoStart(false)

	if !c.SubmitEnabled() {
		t.Fatal("expected submit enabled without profile or branch when auto-start is off")
	}

	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(b.calls) != 1 || b.calls[0].op != OpCreate {
		t.Fatalf("expected a single create call, got %+v", b.calls)
	}
	if b.calls[0].create.Title != "Write docs" {
		t.Errorf("title = %q", b.calls[0].create.Title)
	}
}

// Scenario C
func TestEditUpdatesTask(t *testing.T) {
	task := Task{ID: "t1", Title: "Old", Description: "Body", Status: StatusTodo}
	c, _ := newController(EditMode{Task: task}, Defaults{Branches: branches})

	if c.AutoStart() {
		t.Error("auto-start must be off in edit mode")
	}
	c.SetStatus(StatusDone)

	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	want := UpdateTaskInput{Title: "Old", Description: "Body", Status: StatusDone}
	if len(b.calls) != 1 || b.calls[0].op != OpUpdate || b.calls[0].taskID != "t1" {
		t.Fatalf("unexpected calls %+v", b.calls)
	}
	if !reflect.DeepEqual(b.calls[0].update, want) {
		t.Errorf("update = %+v, want %+v", b.calls[0].update, want)
	}
	if !reflect.DeepEqual(b.cleanups, []string{"t1"}) {
		t.Errorf("cleanups = %v, want [t1]", b.cleanups)
	}
}

func TestEditSendsAllImageIDs(t *testing.T) {
	c, _ := newController(EditMode{Task: Task{ID: "t1", Title: "x", Status: StatusTodo}}, Defaults{})
	c.SeedImages([]Image{{ID: "old", OriginalName: "o.png", FilePath: "/f/o.png"}})
	c.ImageUploaded(Image{ID: "new", OriginalName: "n.png", FilePath: "/f/n.png"})

	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := b.calls[0].update.ImageIDs; !reflect.DeepEqual(got, []string{"old", "new"}) {
		t.Errorf("ImageIDs = %v, want [old new]", got)
	}
}

func TestEditCleanupFailureStillSucceeds(t *testing.T) {
	c, closed := newController(EditMode{Task: Task{ID: "t1", Title: "x", Status: StatusTodo}}, Defaults{})
	b := &fakeBackend{cleanupErr: errors.New("disk gone")}

	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if *closed != 1 {
		t.Error("expected dialog to close despite cleanup failure")
	}
}

func TestEditFailureSkipsCleanup(t *testing.T) {
	c, _ := newController(EditMode{Task: Task{ID: "t1", Title: "x", Status: StatusTodo}}, Defaults{})
	b := &fakeBackend{err: errors.New("conflict")}

	if _, err := c.Submit(context.Background(), b); err == nil {
		t.Fatal("expected error")
	}
	if len(b.cleanups) != 0 {
		t.Errorf("expected no cleanup after failed update, got %v", b.cleanups)
	}
}

// Scenario D
func TestImageUploadAppendsReference(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("With screenshot")
	img := Image{ID: "img-1", OriginalName: "a.png", FilePath: "/f/a.png"}
	c.ImageUploaded(img)

	if got := c.Values().Description; got != "![a.png](/f/a.png)" {
		t.Errorf("Description = %q", got)
	}

	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got := b.calls[0].create
	if got.Description != "![a.png](/f/a.png)" || !reflect.DeepEqual(got.ImageIDs, []string{"img-1"}) {
		t.Errorf("create = %+v", got)
	}
}

func TestImageUploadIgnoresDuplicates(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{})
	img := Image{ID: "img-1", OriginalName: "a.png", FilePath: "/f/a.png"}
	c.ImageUploaded(img)
	c.ImageUploaded(img)

	if got := c.Values().Description; got != "![a.png](/f/a.png)" {
		t.Errorf("Description = %q", got)
	}
	if c.Attachments().Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Attachments().Len())
	}
}

func TestSubtaskSetsParent(t *testing.T) {
	mode := SubtaskMode{ParentRunID: "run-9", InitialBaseBranch: "ghost", ParentBranch: "main"}
	c, _ := newController(mode, Defaults{Profile: profilePtr(codex), Branches: branches})
	c.SetTitle("Follow up")

	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got := b.calls[0]
	if got.create.ParentRunID != "run-9" || got.branch != "main" || got.profile != codex {
		t.Errorf("unexpected call %+v", got)
	}
}

func TestDuplicateDoesNotSetParent(t *testing.T) {
	template := Task{ID: "t1", Title: "Copy me", Description: "Body", Status: StatusDone}
	c, _ := newController(DuplicateMode{Template: template}, Defaults{Profile: profilePtr(claude), Branches: branches})

	if c.Values().Status != StatusTodo {
		t.Errorf("Status = %s, want todo", c.Values().Status)
	}
	b := &fakeBackend{}
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := b.calls[0].create; got.ParentRunID != "" || got.Title != "Copy me" {
		t.Errorf("create = %+v", got)
	}
}

func TestSubmitGate(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude)})

	if c.SubmitEnabled() {
		t.Error("expected gate closed without title")
	}
	c.SetTitle("Title")
	if c.SubmitEnabled() {
		t.Error("expected gate closed without branch")
	}
	if _, err := c.BeginSubmit(); !errors.Is(err, ErrInvalid) {
		t.Errorf("BeginSubmit() error = %v, want ErrInvalid", err)
	}

	c.SetBranch("main")
	if !c.SubmitEnabled() || !c.ShortcutEnabled() {
		t.Error("expected gate and shortcut open")
	}

	c.SetVisible(false)
	if c.ShortcutEnabled() {
		t.Error("expected shortcut disabled while hidden")
	}
}

func TestAutoStartToggleKeepsValues(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("x")
	before := c.Values()

	c.SetAutoStart(false)
	c.SetAutoStart(false)
	c.SetAutoStart(true)
	c.SetAutoStart(false)
	c.SetAutoStart(true)

	if !c.Values().Equal(before) {
		t.Errorf("values changed: %+v, want %+v", c.Values(), before)
	}
	if c.Store().Dirty() != true || c.Store().FieldDirty(FieldProfile) || c.Store().FieldDirty(FieldBranch) {
		t.Error("toggle should only leave the title dirty")
	}
	if !c.AutoStart() {
		t.Error("expected auto-start on")
	}
}

func TestBranchesReDefaultUntilTouched(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude)})
	if c.Values().Branch != "" {
		t.Fatalf("Branch = %q, want empty before branches load", c.Values().Branch)
	}

	c.SetBranches(branches)
	if c.Values().Branch != "dev" {
		t.Errorf("Branch = %q, want dev", c.Values().Branch)
	}
	if c.Store().Dirty() {
		t.Error("defaulted branch should not be dirty")
	}

	c.SetBranch("main")
	c.SetBranches([]gitrepo.Branch{{Name: "main"}, {Name: "release", IsCurrent: true}})
	if c.Values().Branch != "main" {
		t.Errorf("Branch = %q, want main after user choice", c.Values().Branch)
	}
}

func TestBranchesIgnoredInEdit(t *testing.T) {
	c, _ := newController(EditMode{Task: Task{ID: "t1", Title: "x", Status: StatusTodo}}, Defaults{})
	c.SetBranches(branches)
	if c.Values().Branch != "" {
		t.Errorf("Branch = %q, want empty in edit mode", c.Values().Branch)
	}
	if len(c.Defaults().Branches) != 2 {
		t.Error("expected branch list to be recorded")
	}
}

func TestPreconditionAbort(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Branches: branches})
	c.SetTitle("x")
	c.SetProfile(nil)

	if c.CanSubmit() {
		t.Fatal("expected gate closed without profile")
	}

	sub, err := route(c.Mode(), c.Values(), true, c.Attachments(), nil)
	if !errors.Is(err, ErrPrecondition) || sub != nil {
		t.Errorf("route() = %v, %v; want ErrPrecondition", sub, err)
	}

	v := c.Values()
	v.Profile = profilePtr(claude)
	v.Branch = ""
	if _, err := route(c.Mode(), v, true, c.Attachments(), nil); !errors.Is(err, ErrPrecondition) {
		t.Errorf("route() without branch error = %v, want ErrPrecondition", err)
	}
}

func TestRouteFallsBackToDefaultProfile(t *testing.T) {
	v := Values{Title: "x", Status: StatusTodo, Branch: "main"}
	sub, err := route(CreateMode{}, v, true, NewAttachments(), profilePtr(codex))
	if err != nil {
		t.Fatalf("route() error = %v", err)
	}
	if sub.Op != OpCreateAndStart || sub.Profile != codex {
		t.Errorf("route() = %+v", sub)
	}
}

func TestFailureKeepsFieldsAndAllowsRetry(t *testing.T) {
	c, closed := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("Retry me")

	b := &fakeBackend{err: errors.New("network down")}
	if _, err := c.Submit(context.Background(), b); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != StateFailed || c.Err() == nil {
		t.Errorf("State() = %s, Err() = %v", c.State(), c.Err())
	}
	if c.Closed() || *closed != 0 {
		t.Error("dialog should stay open after failure")
	}
	if c.Values().Title != "Retry me" {
		t.Errorf("Title = %q, want kept", c.Values().Title)
	}
	if !c.SubmitEnabled() {
		t.Error("expected submit enabled after failure")
	}

	b.err = nil
	if _, err := c.Submit(context.Background(), b); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if len(b.calls) != 2 || *closed != 1 {
		t.Errorf("calls = %d, closed = %d", len(b.calls), *closed)
	}
}

func TestEditClearsFailure(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("x")
	if _, err := c.Submit(context.Background(), &fakeBackend{err: errors.New("boom")}); err == nil {
		t.Fatal("expected error")
	}
	c.SetTitle("y")
	if c.State() != StateIdle || c.Err() != nil {
		t.Errorf("State() = %s, Err() = %v; want idle and no error", c.State(), c.Err())
	}
}

func TestSubmitWhileSubmitting(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("x")

	sub, err := c.BeginSubmit()
	if err != nil {
		t.Fatalf("BeginSubmit() error = %v", err)
	}
	if c.SubmitEnabled() || c.ShortcutEnabled() {
		t.Error("expected submit disabled while submitting")
	}
	if _, err := c.BeginSubmit(); !errors.Is(err, ErrSubmitting) {
		t.Errorf("second BeginSubmit() error = %v, want ErrSubmitting", err)
	}
	if c.RequestClose() {
		t.Error("close should be ignored while submitting")
	}

	b := &fakeBackend{}
	if err := c.FinishSubmit(sub.Run(context.Background(), b)); err != nil {
		t.Fatalf("FinishSubmit() error = %v", err)
	}
	if len(b.calls) != 1 {
		t.Errorf("expected one backend call, got %d", len(b.calls))
	}
	if _, err := c.BeginSubmit(); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginSubmit() after close error = %v, want ErrClosed", err)
	}
}

func TestCloseWithoutChanges(t *testing.T) {
	c, closed := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	if !c.RequestClose() {
		t.Fatal("expected immediate close")
	}
	if *closed != 1 || c.ShowingDiscardConfirmation() {
		t.Errorf("closed = %d, confirming = %v", *closed, c.ShowingDiscardConfirmation())
	}
	c.RequestClose()
	if *closed != 1 {
		t.Error("expected OnClose to run once")
	}
}

func TestDiscardConfirmation(t *testing.T) {
	c, closed := newController(CreateMode{}, Defaults{Profile: profilePtr(claude), Branches: branches})
	c.SetTitle("draft")

	if c.RequestClose() {
		t.Fatal("expected confirmation for dirty form")
	}
	if !c.ShowingDiscardConfirmation() || c.ShortcutEnabled() {
		t.Error("expected confirmation shown and shortcut disabled")
	}

	c.ContinueEditing()
	if c.ShowingDiscardConfirmation() || c.Values().Title != "draft" || c.Closed() {
		t.Error("continue editing should keep the dialog as it was")
	}

	c.RequestClose()
	c.ConfirmDiscard()
	if !c.Closed() || *closed != 1 {
		t.Error("expected dialog closed after discard")
	}
	if c.Values().Title != "" || c.Store().Dirty() {
		t.Errorf("expected fields reset, got %+v", c.Values())
	}
}

// Scenario E
func TestAttachmentTriggersGuard(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{})
	if c.ShouldConfirmDiscard() {
		t.Fatal("fresh dialog should close without confirmation")
	}
	c.ImageUploaded(Image{ID: "i1", OriginalName: "a.png", FilePath: "/f/a.png"})
	if !c.ShouldConfirmDiscard() {
		t.Error("expected confirmation after attaching an image")
	}
	c.ConfirmDiscard()
	if c.Attachments().Len() != 0 {
		t.Error("expected attachments cleared on discard")
	}
}

func TestGuardRules(t *testing.T) {
	seeded := NewAttachments()
	seeded.Seed([]Image{{ID: "old"}})

	fresh := NewAttachments()
	fresh.Add(Image{ID: "new"})

	tests := []struct {
		name  string
		dirty bool
		att   *Attachments
		kind  ModeKind
		want  bool
	}{
		{"clean create", false, NewAttachments(), ModeCreate, false},
		{"dirty create", true, NewAttachments(), ModeCreate, true},
		{"edit with existing images", false, seeded, ModeEdit, false},
		{"edit with new image", false, fresh, ModeEdit, true},
		{"subtask with images", false, seeded, ModeSubtask, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldConfirmDiscard(tt.dirty, tt.att, tt.kind); got != tt.want {
				t.Errorf("shouldConfirmDiscard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeedImagesOnlyInEdit(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{})
	c.SeedImages([]Image{{ID: "old"}})
	if c.Attachments().Len() != 0 {
		t.Error("seed should be ignored outside edit mode")
	}

	e, _ := newController(EditMode{Task: Task{ID: "t1", Title: "x", Status: StatusTodo}}, Defaults{})
	e.SeedImages([]Image{{ID: "old"}})
	if e.Attachments().Len() != 1 || e.ShouldConfirmDiscard() {
		t.Error("seeded images should not require confirmation")
	}
}

func TestFilesBufferedUntilUploaderMounts(t *testing.T) {
	c, _ := newController(CreateMode{}, Defaults{})
	if got := c.AddFiles("/tmp/a.png"); got != nil {
		t.Errorf("AddFiles() before mount = %v, want nil", got)
	}
	if got := c.MountUploader(); !reflect.DeepEqual(got, []string{"/tmp/a.png"}) {
		t.Errorf("MountUploader() = %v", got)
	}
	if got := c.AddFiles("/tmp/b.png"); !reflect.DeepEqual(got, []string{"/tmp/b.png"}) {
		t.Errorf("AddFiles() after mount = %v", got)
	}
}
