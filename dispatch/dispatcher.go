package dispatch

import (
	"fmt"
	"sync"
	"time"

	"dashmail/composer"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/google/uuid"
)

// Router implements composer.Transport by splitting submissions: scheduled
// payloads are persisted to the outbox for the dispatcher, everything else
// goes straight to the direct transport.
type Router struct {
	outbox *storage.Outbox
	direct composer.Transport
	userID string
}

// NewRouter creates a routing transport for one user's submissions
func NewRouter(outbox *storage.Outbox, direct composer.Transport, userID string) *Router {
	return &Router{outbox: outbox, direct: direct, userID: userID}
}

// Send routes the payload
func (r *Router) Send(p *composer.Payload) error {
	if p.Type != composer.PayloadScheduled {
		return r.direct.Send(p)
	}
	if p.ScheduledAt == nil {
		return fmt.Errorf("scheduled payload has no delivery instant")
	}
	job := &storage.OutboxJob{
		ID:      uuid.New().String(),
		UserID:  r.userID,
		RunAt:   p.ScheduledAt.UTC(),
		Payload: p,
	}
	if err := r.outbox.Add(job); err != nil {
		return fmt.Errorf("failed to queue scheduled message: %w", err)
	}
	utils.Log.Info("Queued scheduled message %s for %s (run_at=%s)", job.ID, p.To, job.RunAt.Format(time.RFC3339))
	return nil
}

// Dispatcher polls the outbox and delivers due jobs through the direct
// transport. Jobs are deleted on success; failures increment the attempt
// count and stay queued for the next tick.
type Dispatcher struct {
	outbox    *storage.Outbox
	transport composer.Transport
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given polling interval
func NewDispatcher(outbox *storage.Outbox, transport composer.Transport, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Dispatcher{
		outbox:    outbox,
		transport: transport,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start begins the dispatch loop. It runs until Stop is called.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.mu.Unlock()

	utils.Log.Info("Dispatcher starting (interval=%s)", d.interval)
	d.wg.Add(1)
	go d.runLoop()
	return nil
}

// Stop signals the dispatcher to stop and waits for in-flight deliveries
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stop)
	d.wg.Wait()
	utils.Log.Info("Dispatcher stopped")
}

func (d *Dispatcher) runLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.DispatchDue(now)
		}
	}
}

// DispatchDue delivers every job due at the given time and returns the
// number of successful deliveries
func (d *Dispatcher) DispatchDue(now time.Time) int {
	jobs, err := d.outbox.ListDue(now)
	if err != nil {
		utils.Log.Error("Dispatcher: failed to list due jobs: %v", err)
		return 0
	}

	sent := 0
	for _, job := range jobs {
		if err := d.transport.Send(job.Payload); err != nil {
			utils.Log.Error("Dispatcher: job %s failed (attempt %d): %v", job.ID, job.Attempts+1, err)
			job.Attempts++
			if err := d.outbox.Update(job); err != nil {
				utils.Log.Error("Dispatcher: cannot update job %s: %v", job.ID, err)
			}
			continue
		}
		if err := d.outbox.Delete(job.ID); err != nil {
			utils.Log.Error("Dispatcher: cannot delete job %s: %v", job.ID, err)
			continue
		}
		utils.Log.Info("Dispatcher: delivered job %s to %s", job.ID, job.Payload.To)
		sent++
	}
	return sent
}
