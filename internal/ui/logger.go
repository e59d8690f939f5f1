package ui

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// The terminal belongs to bubbletea, so the UI logs to
// ~/.local/share/taskform/ui.log.
var (
	uiLogger   *log.Logger
	uiLogFile  *os.File
	loggerOnce sync.Once
)

// GetLogger returns the singleton UI logger.
// Call CloseLogger() when the application exits.
func GetLogger() *log.Logger {
	loggerOnce.Do(func() {
		var w io.Writer = io.Discard
		if err := os.MkdirAll(filepath.Dir(LogPath()), 0755); err == nil {
			if f, err := os.OpenFile(LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				uiLogFile = f
				w = f
			}
		}
		uiLogger = log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Prefix:          "ui",
			Level:           log.DebugLevel,
		})
	})
	return uiLogger
}

// LogPath returns the path to the log file.
func LogPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskform", "ui.log")
}

// CloseLogger closes the log file.
func CloseLogger() {
	if uiLogFile != nil {
		uiLogFile.Close()
	}
}
