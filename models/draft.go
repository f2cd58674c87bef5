package models

import "time"

// Attachment is a staged file waiting to be sent with a draft.
// PreviewURL is a transient handle backed by the blob store; it is released
// when the attachment is removed or the owning session closes.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	PreviewURL  string `json:"preview_url"`
}

// ScheduleSelection is a user-picked local wall-clock date and time plus the
// derived absolute UTC instant for deferred delivery
type ScheduleSelection struct {
	LocalDate  string    `json:"local_date"` // 2006-01-02
	LocalTime  string    `json:"local_time"` // 15:04
	UTCInstant time.Time `json:"utc_instant"`
}

// Draft is the in-progress state of one outgoing message
type Draft struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Recipient   string       `json:"recipient"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Important   bool         `json:"important"`
	TemplateKey string       `json:"template_key,omitempty"`
	Attachments []Attachment `json:"attachments"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RemoteAttachment is a stored attachment descriptor from the read-side mail
// list; the binary lives behind URL and is fetched on demand
type RemoteAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}
