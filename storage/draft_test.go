package storage

import (
	"testing"
	"time"

	"dashmail/models"
)

func TestDraftStorage(t *testing.T) {
	ds := NewDraftStorage(t.TempDir())

	t.Run("save assigns id and timestamps", func(t *testing.T) {
		draft := &models.Draft{Recipient: "asha@example.com", Subject: "Hello", Body: "Body"}
		if err := ds.SaveDraft("alice", "", draft); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		if draft.ID == "" {
			t.Error("Expected generated draft id")
		}
		if draft.UserID != "alice" {
			t.Errorf("Expected owner alice, got %q", draft.UserID)
		}
		if draft.CreatedAt.IsZero() || draft.UpdatedAt.IsZero() {
			t.Error("Expected timestamps to be set")
		}
	})

	t.Run("get round trip", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 3, 30, 0, 0, time.UTC)
		draft := &models.Draft{
			Recipient:   "asha@example.com",
			Subject:     "Scheduled",
			Body:        "Later",
			Important:   true,
			TemplateKey: "followUp",
			ScheduledAt: &at,
		}
		if err := ds.SaveDraft("alice", "", draft); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}

		got, err := ds.GetDraft("alice", draft.ID)
		if err != nil {
			t.Fatalf("GetDraft failed: %v", err)
		}
		if got.Subject != "Scheduled" || !got.Important || got.TemplateKey != "followUp" {
			t.Errorf("Round trip lost fields: %+v", got)
		}
		if got.ScheduledAt == nil || !got.ScheduledAt.Equal(at) {
			t.Errorf("Expected schedule %v, got %v", at, got.ScheduledAt)
		}
	})

	t.Run("attachments are not persisted", func(t *testing.T) {
		draft := &models.Draft{
			Recipient: "asha@example.com",
			Subject:   "With attachment",
			Body:      "Body",
			Attachments: []models.Attachment{
				{ID: "blob-1", Filename: "a.txt"},
			},
		}
		if err := ds.SaveDraft("alice", "", draft); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		got, err := ds.GetDraft("alice", draft.ID)
		if err != nil {
			t.Fatalf("GetDraft failed: %v", err)
		}
		if len(got.Attachments) != 0 {
			t.Errorf("Expected no persisted attachments, got %d", len(got.Attachments))
		}
	})

	t.Run("update keeps the same id", func(t *testing.T) {
		draft := &models.Draft{Recipient: "asha@example.com", Subject: "v1", Body: "Body"}
		if err := ds.SaveDraft("bob", "", draft); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		id := draft.ID

		draft.Subject = "v2"
		if err := ds.SaveDraft("bob", id, draft); err != nil {
			t.Fatalf("SaveDraft update failed: %v", err)
		}
		got, err := ds.GetDraft("bob", id)
		if err != nil {
			t.Fatalf("GetDraft failed: %v", err)
		}
		if got.Subject != "v2" {
			t.Errorf("Expected updated subject, got %q", got.Subject)
		}
		drafts, err := ds.GetDrafts("bob")
		if err != nil {
			t.Fatalf("GetDrafts failed: %v", err)
		}
		if len(drafts) != 1 {
			t.Errorf("Expected 1 draft after update, got %d", len(drafts))
		}
	})

	t.Run("list is newest first and per user", func(t *testing.T) {
		store := NewDraftStorage(t.TempDir())
		for _, subject := range []string{"first", "second", "third"} {
			if err := store.SaveDraft("carol", "", &models.Draft{
				Recipient: "x@example.com", Subject: subject, Body: "b",
			}); err != nil {
				t.Fatalf("SaveDraft failed: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}
		if err := store.SaveDraft("dave", "", &models.Draft{
			Recipient: "y@example.com", Subject: "other user", Body: "b",
		}); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}

		drafts, err := store.GetDrafts("carol")
		if err != nil {
			t.Fatalf("GetDrafts failed: %v", err)
		}
		if len(drafts) != 3 {
			t.Fatalf("Expected 3 drafts for carol, got %d", len(drafts))
		}
		if drafts[0].Subject != "third" || drafts[2].Subject != "first" {
			t.Errorf("Expected newest first, got %q .. %q", drafts[0].Subject, drafts[2].Subject)
		}
	})

	t.Run("delete", func(t *testing.T) {
		draft := &models.Draft{Recipient: "x@example.com", Subject: "doomed", Body: "b"}
		if err := ds.SaveDraft("alice", "", draft); err != nil {
			t.Fatalf("SaveDraft failed: %v", err)
		}
		if err := ds.DeleteDraft("alice", draft.ID); err != nil {
			t.Fatalf("DeleteDraft failed: %v", err)
		}
		if _, err := ds.GetDraft("alice", draft.ID); err == nil {
			t.Error("Expected deleted draft to be gone")
		}
		if err := ds.DeleteDraft("alice", draft.ID); err == nil {
			t.Error("Expected error deleting missing draft")
		}
	})

	t.Run("delete all", func(t *testing.T) {
		store := NewDraftStorage(t.TempDir())
		for i := 0; i < 3; i++ {
			if err := store.SaveDraft("erin", "", &models.Draft{
				Recipient: "x@example.com", Subject: "s", Body: "b",
			}); err != nil {
				t.Fatalf("SaveDraft failed: %v", err)
			}
		}
		if err := store.DeleteAllDrafts("erin"); err != nil {
			t.Fatalf("DeleteAllDrafts failed: %v", err)
		}
		drafts, err := store.GetDrafts("erin")
		if err != nil {
			t.Fatalf("GetDrafts failed: %v", err)
		}
		if len(drafts) != 0 {
			t.Errorf("Expected no drafts, got %d", len(drafts))
		}
	})
}
