// Package ui provides the terminal task dialog.
package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/bborn/taskform/internal/taskform"
	"github.com/charmbracelet/lipgloss"
)

var (
	unicodeSupported     bool
	unicodeSupportedOnce sync.Once
)

// SupportsUnicode returns true if the terminal likely supports Unicode characters.
// It checks LANG, LC_ALL, and LC_CTYPE environment variables for UTF-8 indicators.
func SupportsUnicode() bool {
	unicodeSupportedOnce.Do(func() {
		for _, envVar := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
			val := strings.ToLower(os.Getenv(envVar))
			if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
				unicodeSupported = true
				return
			}
		}
	})
	return unicodeSupported
}

// Icon returns the appropriate icon based on terminal Unicode support.
func Icon(unicodeIcon, asciiIcon string) string {
	if SupportsUnicode() {
		return unicodeIcon
	}
	return asciiIcon
}

// IconCursor returns the focused field marker.
func IconCursor() string { return Icon("▸", ">") }

// IconChecked returns the checked box.
func IconChecked() string { return Icon("☑", "[x]") }

// IconUnchecked returns the unchecked box.
func IconUnchecked() string { return Icon("☐", "[ ]") }

// IconImage returns the attachment marker.
func IconImage() string { return Icon("▣", "#") }

// Colors
var (
	ColorPrimary   = lipgloss.Color("#61AFEF") // Soft blue
	ColorSecondary = lipgloss.Color("#56B6C2") // Cyan
	ColorSuccess   = lipgloss.Color("#98C379") // Green
	ColorWarning   = lipgloss.Color("#E5C07B") // Yellow
	ColorError     = lipgloss.Color("#E06C75") // Red
	ColorMuted     = lipgloss.Color("#5C6370") // Gray

	ColorInProgress = lipgloss.Color("#D19A66") // Orange
	ColorInReview   = lipgloss.Color("#C678DD") // Purple
	ColorDone       = lipgloss.Color("#98C379") // Green
)

// Base styles
var (
	Bold     = lipgloss.NewStyle().Bold(true)
	Dim      = lipgloss.NewStyle().Foreground(ColorMuted)
	Title    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	Subtitle = lipgloss.NewStyle().Foreground(ColorSecondary)
	Success  = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning  = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	Error    = lipgloss.NewStyle().Foreground(ColorError)

	Label    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Width(14)
	Selected = lipgloss.NewStyle().Background(ColorPrimary).Foreground(lipgloss.Color("0"))
	Option   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	AttachmentChip = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Foreground(ColorMuted).
			Padding(0, 1)
	AttachmentChipSelected = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary).
				Foreground(ColorPrimary).
				Bold(true).
				Padding(0, 1)

	ButtonEnabled = lipgloss.NewStyle().
			Background(ColorSuccess).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 2)
	ButtonDisabled = lipgloss.NewStyle().
			Background(lipgloss.Color("238")).
			Foreground(ColorMuted).
			Padding(0, 2)

	HelpKey  = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	HelpDesc = lipgloss.NewStyle().Foreground(ColorMuted)
)

// StatusStyle returns the style for a task status.
func StatusStyle(status taskform.Status) lipgloss.Style {
	switch status {
	case taskform.StatusInProgress:
		return lipgloss.NewStyle().Foreground(ColorInProgress)
	case taskform.StatusInReview:
		return lipgloss.NewStyle().Foreground(ColorInReview)
	case taskform.StatusDone:
		return lipgloss.NewStyle().Foreground(ColorDone)
	case taskform.StatusCancelled:
		return Dim
	default:
		return Option
	}
}
