package taskform

import "fmt"

// Image is an uploaded image attachment.
type Image struct {
	ID           string
	OriginalName string
	FilePath     string
}

// MarkdownRef is the reference inserted into the description for an image.
func (img Image) MarkdownRef() string {
	return fmt.Sprintf("![%s](%s)", img.OriginalName, img.FilePath)
}

// AppendImageRef appends img's markdown reference to description, separated
// by a space unless description is empty.
func AppendImageRef(description string, img Image) string {
	if description == "" {
		return img.MarkdownRef()
	}
	return description + " " + img.MarkdownRef()
}

// Attachments is the dialog's image side state: attached images in attach
// order (unique by id), the subset added during this session, and files
// waiting for the uploader to mount.
type Attachments struct {
	images  []Image
	added   map[string]bool
	pending []string
	mounted bool
}

// NewAttachments creates empty attachment state with the uploader unmounted.
func NewAttachments() *Attachments {
	return &Attachments{added: map[string]bool{}}
}

// Seed adds previously saved images. They are not counted as newly added.
func (a *Attachments) Seed(images []Image) {
	for _, img := range images {
		if !a.has(img.ID) {
			a.images = append(a.images, img)
		}
	}
}

// Add attaches a freshly uploaded image. It reports false if the id is
// already attached.
func (a *Attachments) Add(img Image) bool {
	if a.has(img.ID) {
		return false
	}
	a.images = append(a.images, img)
	a.added[img.ID] = true
	return true
}

// Remove detaches the image with id.
func (a *Attachments) Remove(id string) bool {
	for i, img := range a.images {
		if img.ID == id {
			a.images = append(a.images[:i], a.images[i+1:]...)
			delete(a.added, id)
			return true
		}
	}
	return false
}

// Images returns the attached images in order.
func (a *Attachments) Images() []Image {
	return append([]Image(nil), a.images...)
}

// Len returns the number of attached images.
func (a *Attachments) Len() int {
	return len(a.images)
}

// IDs returns all attached image ids, or nil when nothing is attached.
func (a *Attachments) IDs() []string {
	var ids []string
	for _, img := range a.images {
		ids = append(ids, img.ID)
	}
	return ids
}

// NewIDs returns the ids added during this session in attach order, or nil.
func (a *Attachments) NewIDs() []string {
	var ids []string
	for _, img := range a.images {
		if a.added[img.ID] {
			ids = append(ids, img.ID)
		}
	}
	return ids
}

// HasNew reports whether any image was added during this session.
func (a *Attachments) HasNew() bool {
	return len(a.added) > 0
}

// Clear drops all attached images.
func (a *Attachments) Clear() {
	a.images = nil
	a.added = map[string]bool{}
}

// Queue hands raw files to the uploader. When it is mounted the paths are
// returned for immediate upload, otherwise they are buffered.
func (a *Attachments) Queue(paths ...string) []string {
	if !a.mounted {
		a.pending = append(a.pending, paths...)
		return nil
	}
	return paths
}

// Mount marks the uploader as ready and returns the buffered files.
func (a *Attachments) Mount() []string {
	a.mounted = true
	pending := a.pending
	a.pending = nil
	return pending
}

// Pending returns the number of buffered files.
func (a *Attachments) Pending() int {
	return len(a.pending)
}

func (a *Attachments) has(id string) bool {
	for _, img := range a.images {
		if img.ID == id {
			return true
		}
	}
	return false
}
