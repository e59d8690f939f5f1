package ui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/gitrepo"
	"github.com/bborn/taskform/internal/taskform"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// DialogField is the focused row of the dialog.
type DialogField int

const (
	DialogTitle DialogField = iota
	DialogDescription
	DialogStatus
	DialogProfile
	DialogBranch
	DialogAutoStart
	DialogImages
)

// formField maps a dialog row to the form field it edits.
func (f DialogField) formField() (taskform.Field, bool) {
	switch f {
	case DialogTitle:
		return taskform.FieldTitle, true
	case DialogDescription:
		return taskform.FieldDescription, true
	case DialogStatus:
		return taskform.FieldStatus, true
	case DialogProfile:
		return taskform.FieldProfile, true
	case DialogBranch:
		return taskform.FieldBranch, true
	}
	return 0, false
}

type branchesLoadedMsg struct {
	branches []gitrepo.Branch
	err      error
}

type branchesChangedMsg struct{}

type submitDoneMsg struct {
	res taskform.Result
}

// DialogConfig wires a dialog to its controller and services.
type DialogConfig struct {
	Controller *taskform.Controller
	Backend    taskform.Backend
	Uploader   Uploader
	Profiles   *executor.Profiles
	RepoPath   string // branches are listed and watched here; "" disables
	Keys       KeyMap
	Logger     *log.Logger
}

// DialogModel is the task create/edit dialog.
type DialogModel struct {
	ctx      context.Context
	cancel   context.CancelFunc
	c        *taskform.Controller
	backend  taskform.Backend
	uploader Uploader
	profiles *executor.Profiles
	repoPath string
	keys     KeyMap
	logger   *log.Logger

	width  int
	height int

	focused     DialogField
	title       textinput.Model
	description textarea.Model
	attachments *AttachmentsModel
	spinner     spinner.Model
	watcher     *gitrepo.Watcher

	showErrors bool
	preview    bool
	rendered   string
	submitErr  error
	uploadErr  error
	branchErr  error

	confirm      *huh.Form
	confirmValue bool

	result *taskform.Task
}

// NewDialogModel creates a dialog over cfg.Controller.
func NewDialogModel(cfg DialogConfig, width, height int) *DialogModel {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	keys := cfg.Keys
	if len(keys.Submit.Keys()) == 0 {
		keys = DefaultKeyMap()
	}
	profiles := cfg.Profiles
	if profiles == nil {
		profiles = executor.DefaultProfiles()
	}

	values := cfg.Controller.Values()

	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 0
	ti.SetValue(values.Title)
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Details (markdown)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetValue(values.Description)
	ta.Blur()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	ctx, cancel := context.WithCancel(context.Background())
	m := &DialogModel{
		ctx:         ctx,
		cancel:      cancel,
		c:           cfg.Controller,
		backend:     cfg.Backend,
		uploader:    cfg.Uploader,
		profiles:    profiles,
		repoPath:    cfg.RepoPath,
		keys:        keys,
		logger:      logger,
		title:       ti,
		description: ta,
		attachments: NewAttachmentsModel(cfg.Controller.Attachments()),
		spinner:     s,
	}

	if m.repoPath != "" && !m.isEdit() {
		w, err := gitrepo.Watch(m.repoPath, logger)
		if err != nil {
			logger.Warn("Branch watcher unavailable", "repo", m.repoPath, "error", err)
		} else {
			m.watcher = w
		}
	}

	m.SetSize(width, height)
	return m
}

// Init loads branches and uploads files queued before the dialog opened.
func (m *DialogModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.loadBranches(), m.waitForBranchChange()}
	pending := m.c.MountUploader()
	if len(pending) > 0 {
		m.attachments.uploading += len(pending)
		cmds = append(cmds, uploadImages(m.ctx, m.uploader, pending))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *DialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case branchesLoadedMsg:
		if msg.err != nil {
			m.branchErr = msg.err
			m.logger.Warn("Failed to list branches", "repo", m.repoPath, "error", msg.err)
			return m, nil
		}
		m.branchErr = nil
		m.c.SetBranches(msg.branches)
		return m, nil

	case branchesChangedMsg:
		return m, tea.Batch(m.loadBranches(), m.waitForBranchChange())

	case imageUploadedMsg:
		if m.attachments.uploading > 0 {
			m.attachments.uploading--
		}
		if msg.err != nil {
			m.uploadErr = fmt.Errorf("%s: %w", filepath.Base(msg.path), msg.err)
			m.logger.Warn("Image upload failed", "path", msg.path, "error", msg.err)
			return m, nil
		}
		m.uploadErr = nil
		m.c.ImageUploaded(msg.img)
		m.description.SetValue(m.c.Values().Description)
		return m, nil

	case submitDoneMsg:
		if err := m.c.FinishSubmit(msg.res); err != nil {
			return m, nil
		}
		m.result = msg.res.Task
		return m, m.quit()

	case spinner.TickMsg:
		if m.c.State() != taskform.StateSubmitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(keyMsg)
	}
	return m, m.updateFocused(msg)
}

func (m *DialogModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Bracketed paste of a file path (drag-drop) attaches the file
	if msg.Paste && msg.Type == tea.KeyRunes {
		if path, ok := droppedFile(string(msg.Runes)); ok {
			return m, m.addFiles(path)
		}
		return m, m.updateFocused(msg)
	}

	if m.preview {
		if key.Matches(msg, m.keys.Preview) || key.Matches(msg, m.keys.Cancel) {
			m.preview = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Cancel):
		return m.requestClose()

	case key.Matches(msg, m.keys.ToggleAutoStart):
		m.toggleAutoStart()
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		m.focusNext()
		return m, nil

	case key.Matches(msg, m.keys.PrevField):
		m.focusPrev()
		return m, nil

	case key.Matches(msg, m.keys.Preview):
		m.preview = true
		m.renderPreview()
		return m, nil

	case key.Matches(msg, m.keys.RemoveImage):
		if m.focused == DialogImages {
			if id, ok := m.attachments.Selected(); ok {
				m.c.RemoveImage(id)
				m.attachments.clamp()
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Left):
		if m.isSelector() {
			m.cycle(-1)
			return m, nil
		}

	case key.Matches(msg, m.keys.Right):
		if m.isSelector() {
			m.cycle(1)
			return m, nil
		}
	}

	switch msg.String() {
	case "enter":
		switch m.focused {
		case DialogDescription:
			// newline, handled by the textarea
		case DialogAutoStart:
			m.toggleAutoStart()
			return m, nil
		default:
			m.focusNext()
			return m, nil
		}
	case " ":
		if m.focused == DialogAutoStart {
			m.toggleAutoStart()
			return m, nil
		}
	}

	return m, m.updateFocused(msg)
}

// updateFocused forwards msg to the focused text input and copies its value
// into the form.
func (m *DialogModel) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case DialogTitle:
		m.title, cmd = m.title.Update(msg)
		if v := m.title.Value(); v != m.c.Values().Title {
			m.c.SetTitle(v)
		}
	case DialogDescription:
		m.description, cmd = m.description.Update(msg)
		if v := m.description.Value(); v != m.c.Values().Description {
			m.c.SetDescription(v)
		}
	}
	return cmd
}

func (m *DialogModel) submit() tea.Cmd {
	if !m.c.ShortcutEnabled() {
		m.showErrors = true
		return nil
	}
	sub, err := m.c.BeginSubmit()
	if err != nil {
		m.submitErr = err
		return nil
	}
	m.submitErr = nil

	ctx, backend := m.ctx, m.backend
	run := func() tea.Msg {
		return submitDoneMsg{res: sub.Run(ctx, backend)}
	}
	return tea.Batch(run, m.spinner.Tick)
}

func (m *DialogModel) requestClose() (tea.Model, tea.Cmd) {
	if m.c.RequestClose() {
		return m, m.quit()
	}
	if m.c.ShowingDiscardConfirmation() {
		return m, m.showDiscardConfirm()
	}
	return m, nil
}

func (m *DialogModel) showDiscardConfirm() tea.Cmd {
	m.confirmValue = false
	modalWidth := min(50, m.width-8)
	m.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("discard").
				Title("Discard changes?").
				Description("Your edits and attached images will be lost.").
				Affirmative("Discard").
				Negative("Keep editing").
				Value(&m.confirmValue),
		),
	).WithTheme(huh.ThemeDracula()).
		WithWidth(modalWidth - 6).
		WithShowHelp(true)
	return m.confirm.Init()
}

func (m *DialogModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.confirm = nil
		m.c.ContinueEditing()
		return m, nil
	}

	form, cmd := m.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.confirm = f
	}

	switch m.confirm.State {
	case huh.StateCompleted:
		m.confirm = nil
		if m.confirmValue {
			m.c.ConfirmDiscard()
			return m, m.quit()
		}
		m.c.ContinueEditing()
		return m, nil
	case huh.StateAborted:
		m.confirm = nil
		m.c.ContinueEditing()
		return m, nil
	}
	return m, cmd
}

func (m *DialogModel) addFiles(paths ...string) tea.Cmd {
	now := m.c.AddFiles(paths...)
	m.attachments.uploading += len(now)
	return uploadImages(m.ctx, m.uploader, now)
}

func (m *DialogModel) toggleAutoStart() {
	if m.isEdit() {
		return
	}
	m.c.SetAutoStart(!m.c.AutoStart())
}

func (m *DialogModel) loadBranches() tea.Cmd {
	if m.repoPath == "" || m.isEdit() {
		return nil
	}
	path := m.repoPath
	return func() tea.Msg {
		branches, err := gitrepo.ListBranches(path)
		return branchesLoadedMsg{branches: branches, err: err}
	}
}

// waitForBranchChange returns a command that waits for the repository's
// branches to change.
func (m *DialogModel) waitForBranchChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	ch := m.watcher.Changes()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return branchesChangedMsg{}
	}
}

func (m *DialogModel) quit() tea.Cmd {
	m.Close()
	return tea.Quit
}

// Close stops the branch watcher and cancels in-flight uploads.
func (m *DialogModel) Close() {
	m.cancel()
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

func (m *DialogModel) isEdit() bool {
	return m.c.Mode().Kind() == taskform.ModeEdit
}

// fields returns the rows shown for the dialog's mode, in focus order.
func (m *DialogModel) fields() []DialogField {
	if m.isEdit() {
		return []DialogField{DialogTitle, DialogDescription, DialogStatus, DialogImages}
	}
	return []DialogField{DialogTitle, DialogDescription, DialogProfile, DialogBranch, DialogAutoStart, DialogImages}
}

func (m *DialogModel) focusNext() { m.moveFocus(1) }
func (m *DialogModel) focusPrev() { m.moveFocus(-1) }

func (m *DialogModel) moveFocus(delta int) {
	if f, ok := m.focused.formField(); ok {
		m.c.Blur(f)
	}
	fields := m.fields()
	idx := 0
	for i, f := range fields {
		if f == m.focused {
			idx = i
			break
		}
	}
	m.focused = fields[(idx+delta+len(fields))%len(fields)]

	m.title.Blur()
	m.description.Blur()
	switch m.focused {
	case DialogTitle:
		m.title.Focus()
	case DialogDescription:
		m.description.Focus()
	}
}

func (m *DialogModel) isSelector() bool {
	switch m.focused {
	case DialogStatus, DialogProfile, DialogBranch, DialogAutoStart, DialogImages:
		return true
	}
	return false
}

// cycle moves the focused selector by delta.
func (m *DialogModel) cycle(delta int) {
	v := m.c.Values()
	switch m.focused {
	case DialogStatus:
		idx := 0
		for i, s := range taskform.Statuses {
			if s == v.Status {
				idx = i
			}
		}
		m.c.SetStatus(taskform.Statuses[wrap(idx, delta, len(taskform.Statuses))])

	case DialogProfile:
		ids := m.profiles.IDs()
		if len(ids) == 0 {
			return
		}
		idx := -1
		for i, id := range ids {
			if v.Profile != nil && *v.Profile == id {
				idx = i
			}
		}
		next := ids[wrap(idx, delta, len(ids))]
		m.c.SetProfile(&next)

	case DialogBranch:
		branches := m.c.Defaults().Branches
		if len(branches) == 0 {
			return
		}
		idx := -1
		for i, b := range branches {
			if b.Name == v.Branch {
				idx = i
			}
		}
		m.c.SetBranch(branches[wrap(idx, delta, len(branches))].Name)

	case DialogAutoStart:
		m.toggleAutoStart()

	case DialogImages:
		if delta < 0 {
			m.attachments.moveLeft()
		} else {
			m.attachments.moveRight()
		}
	}
}

// wrap moves idx by delta within n options. idx -1 means nothing selected.
func wrap(idx, delta, n int) int {
	if idx < 0 {
		if delta < 0 {
			return n - 1
		}
		return 0
	}
	return (idx + delta + n) % n
}

func (m *DialogModel) renderPreview() {
	desc := m.c.Values().Description
	if strings.TrimSpace(desc) == "" {
		m.rendered = Dim.Render("Nothing to preview")
		return
	}
	rendered, err := glamour.Render(desc, "dark")
	if err != nil {
		m.logger.Debug("Preview render failed", "error", err)
		m.rendered = desc
		return
	}
	m.rendered = strings.TrimSpace(rendered)
}

// SetSize updates the dialog dimensions.
func (m *DialogModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.title.Width = max(20, width-30)
	m.description.SetWidth(max(20, width-14))
	m.description.SetHeight(max(3, min(12, height-26)))
}

// Controller returns the form controller.
func (m *DialogModel) Controller() *taskform.Controller { return m.c }

// Focused returns the focused row.
func (m *DialogModel) Focused() DialogField { return m.focused }

// Result returns the saved task once the dialog closed after a submit.
func (m *DialogModel) Result() *taskform.Task { return m.result }

// View renders the dialog.
func (m *DialogModel) View() string {
	if m.confirm != nil {
		return m.viewConfirm()
	}

	var b strings.Builder
	v := m.c.Values()
	errs := m.c.Errors()

	b.WriteString(Title.Render(m.heading()))
	if sub, ok := m.c.Mode().(taskform.SubtaskMode); ok {
		b.WriteString("  " + Dim.Render("from run "+shortID(sub.ParentRunID)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.row(DialogTitle, "Title", m.title.View()))
	b.WriteString(m.fieldError(errs, taskform.FieldTitle))
	b.WriteString("\n")

	b.WriteString(m.row(DialogDescription, "Description", ""))
	if m.preview {
		b.WriteString(m.rendered + "\n")
	} else {
		for _, line := range strings.Split(m.description.View(), "\n") {
			b.WriteString("   " + line + "\n")
		}
	}
	b.WriteString("\n")

	if m.isEdit() {
		labels := make([]string, len(taskform.Statuses))
		selected := 0
		for i, s := range taskform.Statuses {
			labels[i] = s.Label()
			if s == v.Status {
				selected = i
			}
		}
		b.WriteString(m.row(DialogStatus, "Status", renderSelector(labels, selected, m.focused == DialogStatus)))
		b.WriteString("\n")
	} else {
		profile := Dim.Render("none")
		if v.Profile != nil {
			profile = m.profileName(*v.Profile)
		}
		b.WriteString(m.row(DialogProfile, "Profile", m.renderCycler(profile, m.focused == DialogProfile)))
		b.WriteString(m.fieldError(errs, taskform.FieldProfile))

		b.WriteString(m.row(DialogBranch, "Base branch", m.branchView(v.Branch)))
		b.WriteString(m.fieldError(errs, taskform.FieldBranch))

		box := IconUnchecked()
		if m.c.AutoStart() {
			box = IconChecked()
		}
		b.WriteString(m.row(DialogAutoStart, "Start", box+" "+Dim.Render("run the agent right away")))
		b.WriteString("\n")
	}

	b.WriteString(m.row(DialogImages, "Images", m.attachments.View(m.focused == DialogImages)))
	b.WriteString("\n")

	b.WriteString("  " + m.button())
	if m.c.State() == taskform.StateSubmitting {
		b.WriteString("  " + m.spinner.View() + " " + Dim.Render("Saving..."))
	}
	b.WriteString("\n")

	for _, err := range []error{m.c.Err(), m.submitErr, m.uploadErr, m.branchErr} {
		if err != nil {
			b.WriteString("  " + Error.Render(err.Error()) + "\n")
		}
	}

	b.WriteString("\n  " + m.helpLine())

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 2).
		Width(max(40, m.width-4))

	return box.Render(b.String())
}

func (m *DialogModel) heading() string {
	switch m.c.Mode().Kind() {
	case taskform.ModeEdit:
		return "Edit Task"
	case taskform.ModeDuplicate:
		return "Duplicate Task"
	case taskform.ModeSubtask:
		return "New Subtask"
	}
	return "New Task"
}

func (m *DialogModel) row(f DialogField, label, content string) string {
	cursor := " "
	if m.focused == f {
		cursor = lipgloss.NewStyle().Foreground(ColorPrimary).Render(IconCursor())
	}
	return cursor + " " + Label.Render(label) + content + "\n"
}

func (m *DialogModel) fieldError(errs taskform.FieldErrors, f taskform.Field) string {
	msg, ok := errs[f]
	if !ok || !(m.showErrors || m.c.Store().Blurred(f)) {
		return ""
	}
	return strings.Repeat(" ", 16) + Error.Render(msg) + "\n"
}

func (m *DialogModel) profileName(id executor.ProfileID) string {
	if p, ok := m.profiles.Find(id); ok {
		return p.DisplayName()
	}
	return id.String()
}

func (m *DialogModel) branchView(current string) string {
	branches := m.c.Defaults().Branches
	if len(branches) == 0 {
		if m.repoPath == "" || m.branchErr != nil {
			return Dim.Render("no branches")
		}
		return Dim.Render("loading...")
	}
	label := current
	if label == "" {
		label = Dim.Render("none")
	}
	pos := 0
	for i, b := range branches {
		if b.Name == current {
			pos = i + 1
			if b.IsCurrent {
				label += Dim.Render(" (current)")
			}
		}
	}
	counter := Dim.Render(fmt.Sprintf("  %d/%d", pos, len(branches)))
	return m.renderCycler(label, m.focused == DialogBranch) + counter
}

func (m *DialogModel) renderCycler(label string, focused bool) string {
	if focused {
		return HelpKey.Render("‹ ") + Selected.Render(" "+label+" ") + HelpKey.Render(" ›")
	}
	return Option.Bold(true).Render(label)
}

func renderSelector(options []string, selected int, focused bool) string {
	parts := make([]string, 0, len(options))
	for i, opt := range options {
		switch {
		case i == selected && focused:
			parts = append(parts, Selected.Render(" "+opt+" "))
		case i == selected:
			parts = append(parts, Option.Bold(true).Render(opt))
		default:
			parts = append(parts, Dim.Render(opt))
		}
	}
	return strings.Join(parts, "  ")
}

func (m *DialogModel) button() string {
	label := "Create"
	switch {
	case m.isEdit():
		label = "Save"
	case m.c.AutoStart():
		label = "Create & Start"
	}
	if m.c.SubmitEnabled() {
		return ButtonEnabled.Render(label)
	}
	return ButtonDisabled.Render(label)
}

func (m *DialogModel) helpLine() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		if m.isEdit() && b.Help().Desc == m.keys.ToggleAutoStart.Help().Desc {
			continue
		}
		parts = append(parts, HelpKey.Render(b.Help().Key)+" "+HelpDesc.Render(b.Help().Desc))
	}
	if m.focused == DialogImages && m.attachments.attachments.Len() > 0 {
		parts = append(parts, HelpKey.Render(m.keys.RemoveImage.Help().Key)+" "+HelpDesc.Render(m.keys.RemoveImage.Help().Desc))
	}
	return strings.Join(parts, HelpDesc.Render(" • "))
}

func (m *DialogModel) viewConfirm() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWarning).
		MarginBottom(1).
		Render("Unsaved changes")

	modalWidth := min(50, m.width-8)
	modalBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(1, 2).
		Width(modalWidth)

	modalContent := modalBox.Render(lipgloss.JoinVertical(lipgloss.Center, header, m.confirm.View()))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(modalContent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
