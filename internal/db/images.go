package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Image is an uploaded image file that can be linked to tasks.
type Image struct {
	ID           string
	OriginalName string
	FilePath     string
	MimeType     string
	Size         int64
	CreatedAt    LocalTime
}

// ErrImageNotFound is returned when an image id does not exist.
var ErrImageNotFound = errors.New("image not found")

// CreateImage records an uploaded image.
func (db *DB) CreateImage(img *Image) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO images (id, original_name, file_path, mime_type, size)
		VALUES (?, ?, ?, ?, ?)
	`, img.ID, img.OriginalName, img.FilePath, img.MimeType, img.Size)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetImage retrieves an image by ID.
func (db *DB) GetImage(id string) (*Image, error) {
	img := &Image{}
	err := db.QueryRow(`
		SELECT id, original_name, file_path, COALESCE(mime_type, ''), COALESCE(size, 0), created_at
		FROM images WHERE id = ?
	`, id).Scan(&img.ID, &img.OriginalName, &img.FilePath, &img.MimeType, &img.Size, &img.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// ListTaskImages returns the images linked to a task in attachment order.
func (db *DB) ListTaskImages(taskID string) ([]*Image, error) {
	rows, err := db.Query(`
		SELECT i.id, i.original_name, i.file_path, COALESCE(i.mime_type, ''), COALESCE(i.size, 0), i.created_at
		FROM images i
		JOIN task_images ti ON ti.image_id = i.id
		WHERE ti.task_id = ?
		ORDER BY ti.position ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task images: %w", err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.ID, &img.OriginalName, &img.FilePath, &img.MimeType, &img.Size, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteUnlinkedImages removes the images among ids that no task links to
// and returns the removed rows so the caller can delete the files. Images
// outside ids are never touched.
func (db *DB) DeleteUnlinkedImages(ids []string) ([]*Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var removed []*Image
	for _, id := range ids {
		img := &Image{}
		err := tx.QueryRow(`
			SELECT id, original_name, file_path
			FROM images
			WHERE id = ? AND id NOT IN (SELECT image_id FROM task_images)
		`, id).Scan(&img.ID, &img.OriginalName, &img.FilePath)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query unlinked image: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM images WHERE id = ?", img.ID); err != nil {
			return nil, fmt.Errorf("delete image: %w", err)
		}
		removed = append(removed, img)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit image cleanup: %w", err)
	}
	return removed, nil
}

func linkedImageIDs(tx *sql.Tx, taskID string) ([]string, error) {
	rows, err := tx.Query("SELECT image_id FROM task_images WHERE task_id = ? ORDER BY position ASC", taskID)
	if err != nil {
		return nil, fmt.Errorf("list task image ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan image id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func linkImages(tx *sql.Tx, taskID string, imageIDs []string) error {
	for i, id := range imageIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO task_images (task_id, image_id, position)
			VALUES (?, ?, ?)
		`, taskID, id, i); err != nil {
			return fmt.Errorf("link image %s: %w", id, err)
		}
	}
	return nil
}
