package composer

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"dashmail/models"
)

// State is the lifecycle position of a composition session
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateScheduling
	StateSubmitting
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateScheduling:
		return "scheduling"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Submit outcomes reported to the caller. A discarded outcome means the
// transport accepted the message but the session was closed while the
// submit was in flight, so no session state reflects the completion.
const (
	OutcomeSent      = "sent"
	OutcomeScheduled = "scheduled"
	OutcomeDiscarded = "discarded"
)

// Session is the state machine governing one open instance of the message
// composer. It owns its draft, field values and attachment list; all access
// is serialized through its mutex. The transport call itself runs without
// the lock held so the session stays responsive while a submit is
// outstanding.
type Session struct {
	ID     string
	UserID string

	mu          sync.Mutex
	state       State
	closed      bool
	tpl         *models.Template
	values      map[string]string
	renderRev   uint64
	draft       models.Draft
	schedule    *models.ScheduleSelection
	attachments *AttachmentManager
	lastSeen    time.Time
}

func newSession(id, userID string, blobs BlobStore, maxBytes int64, maxImageWidth int) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		state:       StateEmpty,
		values:      make(map[string]string),
		draft:       models.Draft{ID: id, UserID: userID, CreatedAt: time.Now()},
		attachments: NewAttachmentManager(blobs, maxBytes, maxImageWidth),
		lastSeen:    time.Now(),
	}
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a snapshot of the current draft
func (s *Session) Draft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.Draft {
	d := s.draft
	d.Attachments = s.attachments.List()
	if s.draft.ScheduledAt != nil {
		at := *s.draft.ScheduledAt
		d.ScheduledAt = &at
	}
	d.UpdatedAt = time.Now()
	return d
}

func (s *Session) touchLocked() {
	s.lastSeen = time.Now()
}

// IdleSince reports how long ago the session was last used
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// guardMutable rejects mutations on closed or mid-submit sessions
func (s *Session) guardMutableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	return nil
}

// SelectTemplate activates a template: field values reset and the draft's
// subject and body are re-rendered from the template patterns. An unknown
// key returns ErrTemplateNotFound and leaves the draft untouched.
func (s *Session) SelectTemplate(store *Store, key string) (Rendered, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return Rendered{}, err
	}
	s.touchLocked()

	tpl, ok := store.Lookup(key)
	if !ok {
		return Rendered{}, ErrTemplateNotFound
	}

	s.tpl = tpl
	s.values = make(map[string]string)
	rendered := Render(tpl, s.values)
	s.draft.TemplateKey = key
	s.draft.Subject = rendered.Subject
	s.draft.Body = rendered.Body
	s.state = StateEditing
	return rendered, nil
}

// SetField records a field value and re-renders subject and body from the
// original template patterns. rev is the caller's edit revision; a result
// computed for an older revision than the last applied one is discarded so
// a slow early render can never overwrite a later edit. rev 0 bypasses the
// ordering check.
func (s *Session) SetField(name, value string, rev uint64) (Rendered, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return Rendered{}, false, err
	}
	s.touchLocked()

	current := Rendered{Subject: s.draft.Subject, Body: s.draft.Body}
	if s.tpl == nil {
		return current, false, nil
	}
	if rev != 0 && rev <= s.renderRev {
		// Stale edit; keep the newer render.
		return current, false, nil
	}

	s.values[name] = value
	rendered := Render(s.tpl, s.values)
	s.draft.Subject = rendered.Subject
	s.draft.Body = rendered.Body
	if rev != 0 {
		s.renderRev = rev
	}
	s.state = StateEditing
	return rendered, true, nil
}

// SetRecipient updates the draft recipient
func (s *Session) SetRecipient(recipient string) error {
	return s.edit(func() { s.draft.Recipient = strings.TrimSpace(recipient) })
}

// SetSubject overrides the draft subject with free text
func (s *Session) SetSubject(subject string) error {
	return s.edit(func() { s.draft.Subject = subject })
}

// SetBody overrides the draft body with free text
func (s *Session) SetBody(body string) error {
	return s.edit(func() { s.draft.Body = body })
}

// SetImportant toggles the importance flag
func (s *Session) SetImportant(important bool) error {
	return s.edit(func() { s.draft.Important = important })
}

func (s *Session) edit(apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return err
	}
	s.touchLocked()
	apply()
	s.state = StateEditing
	return nil
}

// Restore loads a previously saved draft into the session
func (s *Session) Restore(d *models.Draft) error {
	return s.edit(func() {
		s.draft.Recipient = d.Recipient
		s.draft.Subject = d.Subject
		s.draft.Body = d.Body
		s.draft.Important = d.Important
		s.draft.TemplateKey = d.TemplateKey
		if d.ScheduledAt != nil {
			at := *d.ScheduledAt
			s.draft.ScheduledAt = &at
		}
	})
}

// OpenScheduler enters the scheduling sub-state
func (s *Session) OpenScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.state = StateScheduling
	return nil
}

// CancelScheduler returns to editing without adopting a schedule
func (s *Session) CancelScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.state = StateEditing
	return nil
}

// ConfirmSchedule copies the selection's UTC instant into the draft and
// returns to editing
func (s *Session) ConfirmSchedule(sel models.ScheduleSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return err
	}
	s.touchLocked()
	at := sel.UTCInstant
	s.schedule = &sel
	s.draft.ScheduledAt = &at
	s.state = StateEditing
	return nil
}

// ClearSchedule reverts the draft to immediate delivery
func (s *Session) ClearSchedule() error {
	return s.edit(func() {
		s.schedule = nil
		s.draft.ScheduledAt = nil
	})
}

// AddAttachment stages a file on the draft
func (s *Session) AddAttachment(filename, contentType string, data []byte) (models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return models.Attachment{}, err
	}
	s.touchLocked()
	att, err := s.attachments.Add(filename, contentType, data)
	if err != nil {
		return models.Attachment{}, err
	}
	s.state = StateEditing
	return att, nil
}

// RemoveAttachment removes a staged file and releases its preview resource
func (s *Session) RemoveAttachment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutableLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.attachments.Remove(id)
	s.state = StateEditing
	return nil
}

// AttachmentData reads a staged attachment payload
func (s *Session) AttachmentData(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.touchLocked()
	return s.attachments.Data(id)
}

// Validate checks the submit preconditions: a plausible recipient address
// and non-empty subject and body
func (s *Session) Validate() ValidationErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Session) validateLocked() ValidationErrors {
	var errs ValidationErrors
	recipient := strings.TrimSpace(s.draft.Recipient)
	if recipient == "" {
		errs = append(errs, &ValidationError{Field: "recipient", Reason: "recipient is required"})
	} else if _, err := mail.ParseAddress(recipient); err != nil {
		errs = append(errs, &ValidationError{Field: "recipient", Reason: "recipient is not a valid address"})
	}
	if strings.TrimSpace(s.draft.Subject) == "" {
		errs = append(errs, &ValidationError{Field: "subject", Reason: "subject is required"})
	}
	if strings.TrimSpace(s.draft.Body) == "" {
		errs = append(errs, &ValidationError{Field: "body", Reason: "body is required"})
	}
	return errs
}

// Submit validates the draft, assembles the transport payload and hands it
// to the transport. Validation failures block the transition and no
// transport call is made. On transport success the draft is cleared and the
// session returns to empty; on failure the draft is preserved for retry and
// the session returns to editing.
//
// The transport call runs without the session lock. If the session is
// closed while a submit is outstanding, the completion is discarded and
// does not touch state a later session may have adopted.
func (s *Session) Submit(transport Transport) (string, error) {
	s.mu.Lock()
	if err := s.guardMutableLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.touchLocked()

	if errs := s.validateLocked(); len(errs) > 0 {
		s.mu.Unlock()
		return "", errs
	}

	payload, err := s.buildPayloadLocked()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	sendErr := transport.Send(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// The composer was closed mid-submit; a newer session must not
		// observe this completion, and callers must not announce it.
		if sendErr != nil {
			return "", fmt.Errorf("send failed after session close: %w", sendErr)
		}
		return OutcomeDiscarded, nil
	}

	if sendErr != nil {
		s.state = StateEditing
		return "", fmt.Errorf("transport rejected the message: %w", sendErr)
	}

	s.resetLocked()
	return outcomeFor(payload), nil
}

func outcomeFor(p *Payload) string {
	if p.Type == PayloadScheduled {
		return OutcomeScheduled
	}
	return OutcomeSent
}

func (s *Session) buildPayloadLocked() (*Payload, error) {
	payload := &Payload{
		To:        s.draft.Recipient,
		Subject:   s.draft.Subject,
		Body:      s.draft.Body,
		Important: s.draft.Important,
		Type:      PayloadSent,
	}
	if s.draft.ScheduledAt != nil {
		at := s.draft.ScheduledAt.UTC()
		payload.Type = PayloadScheduled
		payload.ScheduledAt = &at
		if s.schedule != nil {
			payload.ScheduleDate = s.schedule.LocalDate
			payload.ScheduleTime = s.schedule.LocalTime
		}
	}
	for _, att := range s.attachments.List() {
		data, err := s.attachments.Data(att.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
		}
		payload.Attachments = append(payload.Attachments, PayloadAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Data:        data,
		})
	}
	return payload, nil
}

// resetLocked discards the draft after a successful send
func (s *Session) resetLocked() {
	s.attachments.Clear()
	s.tpl = nil
	s.values = make(map[string]string)
	s.schedule = nil
	s.draft = models.Draft{ID: s.ID, UserID: s.UserID, CreatedAt: time.Now()}
	s.state = StateEmpty
}

// Close ends the session and releases every staged attachment. Further
// mutations fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.attachments.Clear()
	s.state = StateClosed
}
