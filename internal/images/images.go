// Package images stores image attachments on disk and records them in the database.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bborn/taskform/internal/db"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrNotImage is returned when uploading a file that is not a supported image.
var ErrNotImage = errors.New("not a supported image")

// MaxSize is the largest file Upload accepts.
const MaxSize = 20 << 20

// Store copies uploaded images into a directory.
type Store struct {
	db     *db.DB
	dir    string
	logger *log.Logger
}

// NewStore creates a store writing into dir.
func NewStore(database *db.DB, dir string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{db: database, dir: dir, logger: logger.WithPrefix("images")}
}

// DefaultDir returns the default images directory.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskform", "images")
}

// Upload copies the file at src into the store and records it.
func (s *Store) Upload(ctx context.Context, src string) (*db.Image, error) {
	mimeType := DetectMimeType(src)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, filepath.Base(src))
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("image %s is too large (%s)", filepath.Base(src), FormatSize(info.Size()))
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}

	id := uuid.NewString()
	dst := filepath.Join(s.dir, id+strings.ToLower(filepath.Ext(src)))
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(out, readerWithContext(ctx, in))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("copy image: %w", err)
	}

	img := &db.Image{
		ID:           id,
		OriginalName: filepath.Base(src),
		FilePath:     dst,
		MimeType:     mimeType,
		Size:         n,
	}
	if err := s.db.CreateImage(img); err != nil {
		os.Remove(dst)
		return nil, err
	}

	s.logger.Debug("Image uploaded", "id", id, "name", img.OriginalName, "size", FormatSize(n))
	return img, nil
}

// Cleanup deletes the images among ids that no task links to anymore, rows
// and files. Other unlinked images, such as uploads of a dialog that has not
// been saved yet, are left alone.
func (s *Store) Cleanup(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed, err := s.db.DeleteUnlinkedImages(ids)
	if err != nil {
		return 0, err
	}
	for _, img := range removed {
		if err := os.Remove(img.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove image file", "path", img.FilePath, "error", err)
		}
	}
	if len(removed) > 0 {
		s.logger.Debug("Removed unused images", "count", len(removed))
	}
	return len(removed), nil
}

// DetectMimeType guesses a mime type from the file extension.
func DetectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	mimeTypes := map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
		".bmp":  "image/bmp",
		".svg":  "image/svg+xml",
	}
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// FormatSize renders a byte count for humans.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
