package composer

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"time"
)

// Payload types understood by the send transport
const (
	PayloadSent      = "sent"
	PayloadScheduled = "scheduled"
)

// PayloadAttachment is one binary part of an outgoing payload
type PayloadAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Payload is the transport form of a submitted draft. Type "scheduled"
// payloads carry the schedule fields and are deferred by the transport;
// everything else goes out immediately.
type Payload struct {
	To           string              `json:"to"`
	Subject      string              `json:"subject"`
	Body         string              `json:"body"`
	Important    bool                `json:"important"`
	Type         string              `json:"type"`
	ScheduleDate string              `json:"schedule_date,omitempty"`
	ScheduleTime string              `json:"schedule_time,omitempty"`
	ScheduledAt  *time.Time          `json:"scheduled_at,omitempty"`
	Attachments  []PayloadAttachment `json:"attachments,omitempty"`
}

// Transport delivers an assembled payload. Implementations must not retain
// the payload after Send returns.
type Transport interface {
	Send(p *Payload) error
}

// attachmentMeta is the descriptor written once, as a single JSON form
// field, alongside the binary parts
type attachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// EncodeMultipart writes the payload as a multipart form: scalar values as
// form fields, attachments as binary parts plus one JSON descriptor field.
// It returns the content type carrying the part boundary.
func (p *Payload) EncodeMultipart(w io.Writer) (contentType string, err error) {
	mw := multipart.NewWriter(w)

	fields := map[string]string{
		"to":        p.To,
		"subject":   p.Subject,
		"body":      p.Body,
		"important": fmt.Sprintf("%t", p.Important),
		"type":      p.Type,
	}
	if p.Type == PayloadScheduled {
		fields["schedule_date"] = p.ScheduleDate
		fields["schedule_time"] = p.ScheduleTime
		if p.ScheduledAt != nil {
			fields["scheduled_at"] = p.ScheduledAt.UTC().Format(time.RFC3339)
		}
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if len(p.Attachments) > 0 {
		meta := make([]attachmentMeta, 0, len(p.Attachments))
		for _, att := range p.Attachments {
			meta = append(meta, attachmentMeta{
				Filename:    att.Filename,
				ContentType: att.ContentType,
				SizeBytes:   int64(len(att.Data)),
			})
		}
		encoded, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("failed to encode attachment metadata: %w", err)
		}
		if err := mw.WriteField("attachment_meta", string(encoded)); err != nil {
			return "", fmt.Errorf("failed to write attachment metadata: %w", err)
		}

		for _, att := range p.Attachments {
			part, err := mw.CreateFormFile("attachments", att.Filename)
			if err != nil {
				return "", fmt.Errorf("failed to create part for %s: %w", att.Filename, err)
			}
			if _, err := part.Write(att.Data); err != nil {
				return "", fmt.Errorf("failed to write part for %s: %w", att.Filename, err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}
