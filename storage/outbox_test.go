package storage

import (
	"testing"
	"time"

	"dashmail/composer"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	outbox, err := OpenOutbox(t.TempDir())
	if err != nil {
		t.Fatalf("OpenOutbox failed: %v", err)
	}
	t.Cleanup(func() { outbox.Close() })
	return outbox
}

func testJob(id, userID string, runAt time.Time) *OutboxJob {
	return &OutboxJob{
		ID:     id,
		UserID: userID,
		RunAt:  runAt,
		Payload: &composer.Payload{
			To:      "asha@example.com",
			Subject: "Scheduled " + id,
			Body:    "Body",
			Type:    composer.PayloadScheduled,
		},
	}
}

func TestOutbox(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("list due returns past jobs oldest first", func(t *testing.T) {
		outbox := openTestOutbox(t)
		for _, job := range []*OutboxJob{
			testJob("late", "alice", now.Add(-time.Minute)),
			testJob("early", "alice", now.Add(-time.Hour)),
			testJob("exact", "alice", now),
			testJob("future", "alice", now.Add(time.Hour)),
		} {
			if err := outbox.Add(job); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		due, err := outbox.ListDue(now)
		if err != nil {
			t.Fatalf("ListDue failed: %v", err)
		}
		if len(due) != 3 {
			t.Fatalf("Expected 3 due jobs, got %d", len(due))
		}
		if due[0].ID != "early" || due[1].ID != "late" || due[2].ID != "exact" {
			t.Errorf("Expected oldest-first order, got %s %s %s", due[0].ID, due[1].ID, due[2].ID)
		}
	})

	t.Run("payload survives the round trip", func(t *testing.T) {
		outbox := openTestOutbox(t)
		job := testJob("job-1", "alice", now)
		job.Payload.Attachments = []composer.PayloadAttachment{
			{Filename: "a.txt", ContentType: "text/plain", Data: []byte("alpha")},
		}
		if err := outbox.Add(job); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		due, err := outbox.ListDue(now)
		if err != nil {
			t.Fatalf("ListDue failed: %v", err)
		}
		if len(due) != 1 {
			t.Fatalf("Expected 1 job, got %d", len(due))
		}
		got := due[0]
		if got.Payload.Subject != "Scheduled job-1" {
			t.Errorf("Payload subject lost: %q", got.Payload.Subject)
		}
		if len(got.Payload.Attachments) != 1 || string(got.Payload.Attachments[0].Data) != "alpha" {
			t.Errorf("Attachment lost in round trip: %+v", got.Payload.Attachments)
		}
	})

	t.Run("update rewrites attempts", func(t *testing.T) {
		outbox := openTestOutbox(t)
		job := testJob("job-1", "alice", now)
		if err := outbox.Add(job); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		job.Attempts = 2
		if err := outbox.Update(job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		due, err := outbox.ListDue(now)
		if err != nil {
			t.Fatalf("ListDue failed: %v", err)
		}
		if len(due) != 1 || due[0].Attempts != 2 {
			t.Errorf("Expected attempts=2 after update, got %+v", due)
		}
	})

	t.Run("delete removes the job", func(t *testing.T) {
		outbox := openTestOutbox(t)
		if err := outbox.Add(testJob("job-1", "alice", now)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := outbox.Delete("job-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		due, err := outbox.ListDue(now)
		if err != nil {
			t.Fatalf("ListDue failed: %v", err)
		}
		if len(due) != 0 {
			t.Errorf("Expected empty outbox, got %d jobs", len(due))
		}
	})

	t.Run("list filters by user", func(t *testing.T) {
		outbox := openTestOutbox(t)
		if err := outbox.Add(testJob("a1", "alice", now.Add(2*time.Hour))); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := outbox.Add(testJob("a2", "alice", now.Add(time.Hour))); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := outbox.Add(testJob("b1", "bob", now.Add(time.Hour))); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		jobs, err := outbox.List("alice")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("Expected 2 jobs for alice, got %d", len(jobs))
		}
		if jobs[0].ID != "a2" || jobs[1].ID != "a1" {
			t.Errorf("Expected soonest first, got %s %s", jobs[0].ID, jobs[1].ID)
		}
	})
}
