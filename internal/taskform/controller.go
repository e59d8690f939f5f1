package taskform

import (
	"context"
	"io"

	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/gitrepo"
	"github.com/charmbracelet/log"
)

// Config configures a Controller.
type Config struct {
	Mode     Mode
	Defaults Defaults
	Logger   *log.Logger
	// OnClose runs once when the dialog is finalized (submitted, discarded, or
	// closed with nothing to lose).
	OnClose func()
}

// router tracks the submission state machine.
type router struct {
	state   State
	lastErr error
}

// Controller is the dialog's state: fields, side state, submission and lifecycle.
type Controller struct {
	mode        Mode
	defaults    Defaults
	resolver    Resolver
	store       *Store
	attachments *Attachments
	autoStart   bool
	router      router
	logger      *log.Logger

	visible           bool
	confirmingDiscard bool
	closed            bool
	onClose           func()
}

// New creates a controller and seeds its fields for cfg.Mode.
func New(cfg Config) *Controller {
	mode := cfg.Mode
	if mode == nil {
		mode = CreateMode{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	logger = logger.With("mode", mode.Kind().String())

	c := &Controller{
		mode:        mode,
		defaults:    cfg.Defaults,
		resolver:    Resolver{Logger: logger},
		attachments: NewAttachments(),
		autoStart:   true,
		logger:      logger,
		visible:     true,
		onClose:     cfg.OnClose,
	}
	c.store = NewStore(c.resolver.Resolve(mode, cfg.Defaults))
	return c
}

// Mode returns the dialog mode.
func (c *Controller) Mode() Mode { return c.mode }

// Values returns the current field values.
func (c *Controller) Values() Values { return c.store.Values() }

// Store exposes the field store for read access (dirty, touched, blurred).
func (c *Controller) Store() *Store { return c.store }

// Defaults returns the external defaults the dialog currently knows about.
func (c *Controller) Defaults() Defaults { return c.defaults }

func (c *Controller) SetTitle(title string) {
	c.store.SetTitle(title)
	c.clearFailure()
}

func (c *Controller) SetDescription(description string) {
	c.store.SetDescription(description)
	c.clearFailure()
}

func (c *Controller) SetStatus(status Status) {
	c.store.SetStatus(status)
	c.clearFailure()
}

func (c *Controller) SetProfile(profile *executor.ProfileID) {
	c.store.SetProfile(profile)
	c.clearFailure()
}

func (c *Controller) SetBranch(branch string) {
	c.store.SetBranch(branch)
	c.clearFailure()
}

// Blur records that the user left field f.
func (c *Controller) Blur(f Field) { c.store.Blur(f) }

// AutoStart reports whether a run starts after creation. Always false in edit mode.
func (c *Controller) AutoStart() bool {
	return c.autoStart && c.mode.Kind() != ModeEdit
}

// SetAutoStart toggles starting a run after creation. It never changes field values.
func (c *Controller) SetAutoStart(on bool) {
	c.autoStart = on
}

// Errors returns the current validation errors.
func (c *Controller) Errors() FieldErrors {
	return Validate(c.store.values, c.mode.Kind(), c.autoStart)
}

// CanSubmit is the submit gate evaluated against the current values and auto-start.
func (c *Controller) CanSubmit() bool {
	return CanSubmit(c.store.values, c.mode.Kind(), c.autoStart)
}

// SubmitEnabled reports whether the submit button is enabled.
func (c *Controller) SubmitEnabled() bool {
	return !c.closed && c.router.state != StateSubmitting && c.CanSubmit()
}

// ShortcutEnabled reports whether the submit keyboard shortcut is active.
func (c *Controller) ShortcutEnabled() bool {
	return c.visible && !c.confirmingDiscard && c.SubmitEnabled()
}

// SetVisible records whether the dialog is on screen.
func (c *Controller) SetVisible(visible bool) { c.visible = visible }

// SetBranches records a freshly loaded branch list and re-defaults the branch
// field unless the dialog edits an existing task or the user picked a branch.
func (c *Controller) SetBranches(branches []gitrepo.Branch) {
	c.defaults.Branches = branches
	if c.mode.Kind() == ModeEdit {
		return
	}
	resolved := Values{Branch: c.resolver.Branch(c.mode, branches)}
	if c.store.applyDefault(FieldBranch, resolved) {
		c.logger.Debug("Branch defaulted", "branch", resolved.Branch, "available", len(branches))
	}
}

// SetDefaultProfile records the default execution profile. It is used as the
// fallback when starting a run; the profile field itself is not overwritten.
func (c *Controller) SetDefaultProfile(profile *executor.ProfileID) {
	c.defaults.Profile = cloneProfile(profile)
}

// Attachments returns the image side state.
func (c *Controller) Attachments() *Attachments { return c.attachments }

// SeedImages attaches the images an edited task already has.
func (c *Controller) SeedImages(images []Image) {
	if c.mode.Kind() != ModeEdit {
		return
	}
	c.attachments.Seed(images)
}

// AddFiles queues raw files for upload. It returns the paths to upload now;
// paths are buffered until MountUploader when the uploader is not ready.
func (c *Controller) AddFiles(paths ...string) []string {
	return c.attachments.Queue(paths...)
}

// MountUploader marks the uploader ready and returns the buffered paths.
func (c *Controller) MountUploader() []string {
	return c.attachments.Mount()
}

// ImageUploaded attaches an uploaded image and appends its markdown
// reference to the description.
func (c *Controller) ImageUploaded(img Image) {
	if c.closed {
		return
	}
	if !c.attachments.Add(img) {
		return
	}
	c.store.SetDescription(AppendImageRef(c.store.values.Description, img))
}

// RemoveImage detaches an image. The description is left as is.
func (c *Controller) RemoveImage(id string) bool {
	return c.attachments.Remove(id)
}

// State returns the submission state.
func (c *Controller) State() State { return c.router.state }

// Err returns the error of the last failed submission, if any.
func (c *Controller) Err() error { return c.router.lastErr }

// Closed reports whether the dialog has been finalized.
func (c *Controller) Closed() bool { return c.closed }

// BeginSubmit checks the gate, builds the submission, and enters the
// submitting state. The returned submission must be run and its result passed
// to FinishSubmit.
func (c *Controller) BeginSubmit() (*Submission, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.router.state == StateSubmitting {
		return nil, ErrSubmitting
	}
	if !c.CanSubmit() {
		return nil, ErrInvalid
	}

	sub, err := route(c.mode, c.store.Values(), c.AutoStart(), c.attachments, c.defaults.Profile)
	if err != nil {
		c.logger.Warn("Submission aborted", "error", err)
		return nil, err
	}

	c.router.state = StateSubmitting
	c.router.lastErr = nil
	c.logger.Debug("Submitting", "op", sub.Op.String())
	return sub, nil
}

// FinishSubmit applies the result of a submission. Success closes the
// dialog. Failure keeps every field and leaves the router in StateFailed,
// which behaves like idle: the next edit or submit clears it.
func (c *Controller) FinishSubmit(res Result) error {
	if c.router.state != StateSubmitting {
		return nil
	}
	if res.Err != nil {
		c.router.state = StateFailed
		c.router.lastErr = res.Err
		c.logger.Error("Submission failed", "error", res.Err)
		return res.Err
	}
	if res.CleanupErr != nil {
		c.logger.Warn("Attachment cleanup failed", "error", res.CleanupErr)
	}
	c.router.state = StateDone
	c.finalize("submitted")
	return nil
}

// Submit runs a whole submission synchronously.
func (c *Controller) Submit(ctx context.Context, b Backend) (*Task, error) {
	sub, err := c.BeginSubmit()
	if err != nil {
		return nil, err
	}
	res := sub.Run(ctx, b)
	if err := c.FinishSubmit(res); err != nil {
		return nil, err
	}
	return res.Task, nil
}

func (c *Controller) clearFailure() {
	if c.router.state == StateFailed {
		c.router.state = StateIdle
		c.router.lastErr = nil
	}
}

func (c *Controller) finalize(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.visible = false
	c.logger.Debug("Dialog closed", "reason", reason)
	if c.onClose != nil {
		c.onClose()
	}
}
