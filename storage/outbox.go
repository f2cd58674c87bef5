package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"dashmail/composer"

	"go.etcd.io/bbolt"
)

const outboxBucket = "Outbox"

// OutboxJob is one deferred delivery waiting for its run time
type OutboxJob struct {
	ID       string            `json:"id"`
	UserID   string            `json:"user_id"`
	RunAt    time.Time         `json:"run_at"`
	Attempts int               `json:"attempts"`
	Payload  *composer.Payload `json:"payload"`
}

// Outbox persists scheduled payloads until the dispatcher sends them
type Outbox struct {
	db *bbolt.DB
}

// OpenOutbox opens (creating if needed) the outbox database under dataDir
func OpenOutbox(dataDir string) (*Outbox, error) {
	dbPath := filepath.Join(dataDir, "outbox.db")

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(outboxBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Outbox{db: db}, nil
}

// Close closes the underlying database
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Add persists a job
func (o *Outbox) Add(job *OutboxJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return o.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).Put([]byte(job.ID), data)
	})
}

// Update rewrites a job, typically after a failed attempt
func (o *Outbox) Update(job *OutboxJob) error {
	return o.Add(job)
}

// Delete removes a job after successful delivery
func (o *Outbox) Delete(id string) error {
	return o.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).Delete([]byte(id))
	})
}

// ListDue returns all jobs whose run time is at or before now, oldest first
func (o *Outbox) ListDue(now time.Time) ([]*OutboxJob, error) {
	var due []*OutboxJob
	err := o.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).ForEach(func(_, v []byte) error {
			var job OutboxJob
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job: %w", err)
			}
			if !job.RunAt.After(now) {
				due = append(due, &job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

// List returns every pending job for a user, soonest first
func (o *Outbox) List(userID string) ([]*OutboxJob, error) {
	var jobs []*OutboxJob
	err := o.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).ForEach(func(_, v []byte) error {
			var job OutboxJob
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job: %w", err)
			}
			if job.UserID == userID {
				jobs = append(jobs, &job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })
	return jobs, nil
}
