package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dashmail/models"

	"github.com/google/uuid"
)

// DraftStorage persists saved drafts as one JSON file per draft under
// <baseDir>/drafts/<userID>/.
type DraftStorage struct {
	baseDir string
}

// NewDraftStorage creates a new draft storage instance
func NewDraftStorage(baseDir string) *DraftStorage {
	return &DraftStorage{baseDir: baseDir}
}

func (ds *DraftStorage) userDir(userID string) string {
	return filepath.Join(ds.baseDir, "drafts", userID)
}

func (ds *DraftStorage) draftPath(userID, draftID string) string {
	return filepath.Join(ds.userDir(userID), draftID+".json")
}

// SaveDraft saves or updates a draft. An empty draftID creates a new
// draft. Attachments are not persisted with the draft; their blobs
// belong to the live session that staged them.
func (ds *DraftStorage) SaveDraft(userID, draftID string, draft *models.Draft) error {
	if err := os.MkdirAll(ds.userDir(userID), 0755); err != nil {
		return fmt.Errorf("failed to create draft directory: %w", err)
	}

	if draftID == "" {
		draftID = uuid.New().String()
		draft.CreatedAt = time.Now()
	}
	draft.ID = draftID
	draft.UserID = userID
	draft.Attachments = nil
	draft.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := os.WriteFile(ds.draftPath(userID, draftID), data, 0644); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}
	return nil
}

// GetDraft retrieves a specific draft
func (ds *DraftStorage) GetDraft(userID, draftID string) (*models.Draft, error) {
	data, err := os.ReadFile(ds.draftPath(userID, draftID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("draft not found")
		}
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}

	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// GetDrafts retrieves all drafts for a user, newest first
func (ds *DraftStorage) GetDrafts(userID string) ([]*models.Draft, error) {
	dir := ds.userDir(userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts directory: %w", err)
	}

	var drafts []*models.Draft
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		draft, err := ds.GetDraft(userID, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Unreadable files are skipped rather than failing the listing
			continue
		}
		drafts = append(drafts, draft)
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[j].UpdatedAt.Before(drafts[i].UpdatedAt)
	})
	return drafts, nil
}

// DeleteDraft deletes a draft
func (ds *DraftStorage) DeleteDraft(userID, draftID string) error {
	if err := os.Remove(ds.draftPath(userID, draftID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("draft not found")
		}
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DeleteAllDrafts deletes all drafts for a user
func (ds *DraftStorage) DeleteAllDrafts(userID string) error {
	if err := os.RemoveAll(ds.userDir(userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete drafts: %w", err)
	}
	return nil
}
