package composer

import (
	"path/filepath"
	"strings"

	"dashmail/models"
	"dashmail/utils"

	"github.com/google/uuid"
)

// BlobStore holds staged attachment payloads. Put allocates exactly one
// transient resource (the preview URL) per stored blob and Delete releases
// it; the attachment manager keeps the two balanced.
type BlobStore interface {
	Put(id, filename string, data []byte) (previewURL string, err error)
	Get(id string) ([]byte, error)
	Delete(id string) error
}

// AttachmentManager tracks the pending attachments of one composition
// session. It is owned exclusively by that session and is not safe for
// concurrent use on its own; the session serializes access.
type AttachmentManager struct {
	blobs         BlobStore
	maxBytes      int64
	maxImageWidth int
	list          []models.Attachment
}

// NewAttachmentManager creates an attachment manager backed by the given
// blob store. maxBytes is the per-file size cap; files at or above it are
// rejected before any resource is allocated.
func NewAttachmentManager(blobs BlobStore, maxBytes int64, maxImageWidth int) *AttachmentManager {
	return &AttachmentManager{
		blobs:         blobs,
		maxBytes:      maxBytes,
		maxImageWidth: maxImageWidth,
	}
}

// Add validates and stages a file. Oversized files are rejected with a
// field-level validation error and never enter the list. JPEG and PNG
// uploads wider than the configured limit are downscaled before staging.
func (m *AttachmentManager) Add(filename, contentType string, data []byte) (models.Attachment, error) {
	if int64(len(data)) >= m.maxBytes {
		return models.Attachment{}, &ValidationError{
			Field:  "attachments",
			Reason: "file exceeds the attachment size limit",
		}
	}

	if contentType == "" {
		contentType = DetectContentType(filename)
	}

	if m.maxImageWidth > 0 && utils.IsImage(contentType) {
		if optimized, err := utils.OptimizeImage(data, uint(m.maxImageWidth)); err == nil {
			data = optimized
		} else {
			utils.Log.Warn("Failed to optimize image %s: %v", filename, err)
		}
	}

	id := uuid.New().String()
	previewURL, err := m.blobs.Put(id, filename, data)
	if err != nil {
		return models.Attachment{}, err
	}

	att := models.Attachment{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		PreviewURL:  previewURL,
	}
	m.list = append(m.list, att)
	return att, nil
}

// Remove drops the attachment with the given id and releases its preview
// resource. Unknown ids are a no-op.
func (m *AttachmentManager) Remove(id string) {
	for i, att := range m.list {
		if att.ID != id {
			continue
		}
		if err := m.blobs.Delete(att.ID); err != nil {
			utils.Log.Warn("Failed to release attachment blob %s: %v", att.ID, err)
		}
		m.list = append(m.list[:i], m.list[i+1:]...)
		return
	}
}

// Clear removes and releases every staged attachment. Called when the
// owning session ends or after a successful send.
func (m *AttachmentManager) Clear() {
	for _, att := range m.list {
		if err := m.blobs.Delete(att.ID); err != nil {
			utils.Log.Warn("Failed to release attachment blob %s: %v", att.ID, err)
		}
	}
	m.list = nil
}

// List returns the staged attachments in insertion order
func (m *AttachmentManager) List() []models.Attachment {
	out := make([]models.Attachment, len(m.list))
	copy(out, m.list)
	return out
}

// Data reads the stored payload of a staged attachment
func (m *AttachmentManager) Data(id string) ([]byte, error) {
	for _, att := range m.list {
		if att.ID == id {
			return m.blobs.Get(att.ID)
		}
	}
	return nil, ErrAttachmentNotFound
}

// DetectContentType guesses a MIME type from the file extension
func DetectContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "text/plain"
	case ".html":
		return "text/html"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
