package composer

import (
	"sort"

	"dashmail/models"
)

// Store is the static template catalog. It is populated once at start-up
// and read-only afterwards, so it is safe to share between sessions.
type Store struct {
	templates map[string]*models.Template
}

// NewStore creates a template store from the given templates
func NewStore(templates []*models.Template) *Store {
	s := &Store{templates: make(map[string]*models.Template, len(templates))}
	for _, t := range templates {
		s.templates[t.Key] = t
	}
	return s
}

// NewDefaultStore creates a store seeded with the bundled template catalog
func NewDefaultStore() *Store {
	return NewStore(defaultTemplates())
}

// Lookup returns the template for the given key
func (s *Store) Lookup(key string) (*models.Template, bool) {
	t, ok := s.templates[key]
	return t, ok
}

// List returns all templates sorted by key
func (s *Store) List() []*models.Template {
	out := make([]*models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// defaultTemplates is the catalog bundled with the composer
func defaultTemplates() []*models.Template {
	return []*models.Template{
		{
			Key:            "meetingSchedule",
			Name:           "Meeting Schedule",
			SubjectPattern: "Meeting Scheduled: {{meeting_title}}",
			BodyPattern: "Hi {{recipient_name}},\n\n" +
				"A meeting has been scheduled.\n\n" +
				"Title: {{meeting_title}}\n" +
				"Date: {{meeting_date}}\n" +
				"Time: {{meeting_time}}\n\n" +
				"Best regards,\n{{sender_name}}",
			Fields: []models.TemplateField{
				{Name: "recipient_name", Kind: models.FieldText},
				{Name: "meeting_title", Kind: models.FieldText},
				{Name: "meeting_date", Kind: models.FieldDate},
				{Name: "meeting_time", Kind: models.FieldTime},
				{Name: "sender_name", Kind: models.FieldText},
			},
		},
		{
			Key:            "followUp",
			Name:           "Follow Up",
			SubjectPattern: "Following up: {{topic}}",
			BodyPattern: "Hi {{recipient_name}},\n\n" +
				"I wanted to follow up on {{topic}}. Please let me know if you " +
				"have any questions.\n\n" +
				"Best regards,\n{{sender_name}}",
			Fields: []models.TemplateField{
				{Name: "recipient_name", Kind: models.FieldText},
				{Name: "topic", Kind: models.FieldText},
				{Name: "sender_name", Kind: models.FieldText},
			},
		},
		{
			Key:            "welcome",
			Name:           "Welcome",
			SubjectPattern: "Welcome aboard, {{recipient_name}}!",
			BodyPattern: "Hi {{recipient_name}},\n\n" +
				"Welcome to {{company_name}}! Your account is ready as of " +
				"{{start_date}}.\n\n" +
				"Best regards,\n{{sender_name}}",
			Fields: []models.TemplateField{
				{Name: "recipient_name", Kind: models.FieldText},
				{Name: "company_name", Kind: models.FieldText},
				{Name: "start_date", Kind: models.FieldDate},
				{Name: "sender_name", Kind: models.FieldText},
			},
		},
		{
			Key:            "paymentReminder",
			Name:           "Payment Reminder",
			SubjectPattern: "Payment reminder for invoice {{invoice_number}}",
			BodyPattern: "Hi {{recipient_name}},\n\n" +
				"This is a friendly reminder that invoice {{invoice_number}} " +
				"is due on {{due_date}}.\n\n" +
				"Best regards,\n{{sender_name}}",
			Fields: []models.TemplateField{
				{Name: "recipient_name", Kind: models.FieldText},
				{Name: "invoice_number", Kind: models.FieldText},
				{Name: "due_date", Kind: models.FieldDate},
				{Name: "sender_name", Kind: models.FieldText},
			},
		},
	}
}
