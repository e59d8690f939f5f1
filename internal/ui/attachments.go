package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bborn/taskform/internal/taskform"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Uploader stores a local image file and returns the attachable image.
type Uploader interface {
	Upload(ctx context.Context, path string) (taskform.Image, error)
}

type imageUploadedMsg struct {
	path string
	img  taskform.Image
	err  error
}

// uploadImages returns one upload command per path.
func uploadImages(ctx context.Context, u Uploader, paths []string) tea.Cmd {
	if u == nil || len(paths) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(paths))
	for _, path := range paths {
		path := path
		cmds = append(cmds, func() tea.Msg {
			img, err := u.Upload(ctx, path)
			return imageUploadedMsg{path: path, img: img, err: err}
		})
	}
	return tea.Batch(cmds...)
}

// droppedFile turns bracketed-paste text into a file path when it names an
// existing file. Terminals quote and escape dropped paths.
func droppedFile(pasted string) (string, bool) {
	path := strings.TrimSpace(pasted)
	path = strings.Trim(path, "\"'")
	path = strings.ReplaceAll(path, "\\", "")
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	return absPath, true
}

// AttachmentsModel shows the dialog's attached images and tracks which one
// is selected for removal.
type AttachmentsModel struct {
	attachments *taskform.Attachments
	cursor      int
	uploading   int
}

// NewAttachmentsModel creates a view over attachments.
func NewAttachmentsModel(attachments *taskform.Attachments) *AttachmentsModel {
	return &AttachmentsModel{attachments: attachments}
}

func (m *AttachmentsModel) moveLeft() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *AttachmentsModel) moveRight() {
	if m.cursor < m.attachments.Len()-1 {
		m.cursor++
	}
}

// Selected returns the id of the selected image.
func (m *AttachmentsModel) Selected() (string, bool) {
	imgs := m.attachments.Images()
	if len(imgs) == 0 {
		return "", false
	}
	if m.cursor >= len(imgs) {
		m.cursor = len(imgs) - 1
	}
	return imgs[m.cursor].ID, true
}

func (m *AttachmentsModel) clamp() {
	if n := m.attachments.Len(); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	} else if n == 0 {
		m.cursor = 0
	}
}

// View renders the attachments as chips.
func (m *AttachmentsModel) View(focused bool) string {
	imgs := m.attachments.Images()
	if len(imgs) == 0 && m.uploading == 0 {
		return Dim.Render("drop an image file here")
	}

	chips := make([]string, 0, len(imgs)+1)
	for i, img := range imgs {
		label := IconImage() + " " + img.OriginalName
		if focused && i == m.cursor {
			chips = append(chips, AttachmentChipSelected.Render(label))
		} else {
			chips = append(chips, AttachmentChip.Render(label))
		}
	}
	if m.uploading > 0 {
		chips = append(chips, Dim.Render("uploading..."))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, chips...)
}
