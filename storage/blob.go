package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBlobStore keeps staged attachment payloads on disk, one file per
// blob. Put allocates the blob and its preview URL; Delete releases it.
// Live keeps the two countable so tests can assert resource symmetry.
type FileBlobStore struct {
	dir       string
	urlPrefix string
	mu        sync.Mutex
	live      map[string]string // blob id -> original filename
	puts      int
	deletes   int
}

// NewFileBlobStore creates a blob store rooted at dir. urlPrefix is the
// route under which previews are served, e.g. "/api/attachments".
func NewFileBlobStore(dir, urlPrefix string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileBlobStore{
		dir:       dir,
		urlPrefix: urlPrefix,
		live:      make(map[string]string),
	}, nil
}

// Put stores a blob and returns its preview URL
func (s *FileBlobStore) Put(id, filename string, data []byte) (string, error) {
	if err := os.WriteFile(s.path(id), data, 0600); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", id, err)
	}

	s.mu.Lock()
	s.live[id] = filename
	s.puts++
	s.mu.Unlock()

	return fmt.Sprintf("%s/%s/preview", s.urlPrefix, id), nil
}

// Get reads a stored blob
func (s *FileBlobStore) Get(id string) ([]byte, error) {
	s.mu.Lock()
	_, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("blob %s not found", id)
	}
	return os.ReadFile(s.path(id))
}

// Delete releases a stored blob. Deleting an unknown id is an error so
// double releases are visible.
func (s *FileBlobStore) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.live[id]
	if ok {
		delete(s.live, id)
		s.deletes++
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("blob %s not found", id)
	}
	return os.Remove(s.path(id))
}

// LiveCount returns the number of blobs currently allocated
func (s *FileBlobStore) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Stats returns the total put and delete counts
func (s *FileBlobStore) Stats() (puts, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts, s.deletes
}

func (s *FileBlobStore) path(id string) string {
	return filepath.Join(s.dir, id+".blob")
}
