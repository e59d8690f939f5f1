package gitrepo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a repository's branch refs.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan struct{}
	logger  *log.Logger
}

// Watch starts watching HEAD, packed-refs and refs/heads of the repository at
// repoPath. Repositories whose .git is not a directory (linked worktrees) are
// not watched; Changes then never fires.
func Watch(repoPath string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}

	gitDir := filepath.Join(repoPath, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		logger.Debug("Not watching branches, no .git directory", "path", repoPath)
	} else {
		// HEAD and packed-refs are replaced via rename, so watch their directory
		if err := fw.Add(gitDir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", gitDir, err)
		}
		heads := filepath.Join(gitDir, "refs", "heads")
		filepath.WalkDir(heads, func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				if err := fw.Add(path); err != nil {
					logger.Warn("Failed to watch refs", "path", path, "error", err)
				}
			}
			return nil
		})
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.changes)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// New branch namespaces (feature/...) show up as directories
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watcher.Add(event.Name)
				}
			}
			// Non-blocking send to debounce rapid changes
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("Branch watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if filepath.Ext(base) == ".lock" {
		return false
	}
	dir := filepath.Base(filepath.Dir(event.Name))
	if dir == ".git" {
		return base == "HEAD" || base == "packed-refs"
	}
	return true
}

// Changes delivers a value after branch refs change. It is closed by Close.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
