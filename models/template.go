package models

// FieldKind describes how a template field value is entered and formatted
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldDate FieldKind = "date"
	FieldTime FieldKind = "time"
)

// TemplateField is a typed placeholder declared by a template
type TemplateField struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// Template is a named subject/body pattern with typed placeholder fields.
// Patterns contain zero or more {{fieldName}} tokens. Templates are defined
// at process start and never mutated afterwards.
type Template struct {
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	SubjectPattern string          `json:"subject_pattern"`
	BodyPattern    string          `json:"body_pattern"`
	Fields         []TemplateField `json:"fields"`
}

// HasField reports whether the template declares a field with the given name
func (t *Template) HasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
