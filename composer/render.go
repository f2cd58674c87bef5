package composer

import (
	"strings"
	"time"

	"dashmail/models"
)

// Rendered is the result of substituting field values into a template
type Rendered struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Render substitutes field values into the template's subject and body
// patterns. Every {{name}} occurrence of a declared field with a non-empty
// value is replaced; empty values leave the placeholder literal so the user
// can see which fields remain unfilled. Keys not declared by the template
// are ignored.
//
// Rendering always starts from the original patterns and performs a single
// pass: a value that itself contains {{otherField}} text is inserted
// literally and never re-substituted. strings.Replacer guarantees both,
// since it scans the input once and never rescans replaced text.
func Render(tpl *models.Template, values map[string]string) Rendered {
	if tpl == nil {
		return Rendered{}
	}

	pairs := make([]string, 0, len(tpl.Fields)*2)
	for _, field := range tpl.Fields {
		value, ok := values[field.Name]
		if !ok || value == "" {
			continue
		}
		pairs = append(pairs, "{{"+field.Name+"}}", formatFieldValue(field.Kind, value))
	}

	if len(pairs) == 0 {
		return Rendered{Subject: tpl.SubjectPattern, Body: tpl.BodyPattern}
	}

	replacer := strings.NewReplacer(pairs...)
	return Rendered{
		Subject: replacer.Replace(tpl.SubjectPattern),
		Body:    replacer.Replace(tpl.BodyPattern),
	}
}

// formatFieldValue normalizes a raw value for its field kind before
// substitution: dates become 2006-01-02 and times become 15:04 (24-hour).
// Values that do not parse are substituted as entered.
func formatFieldValue(kind models.FieldKind, value string) string {
	switch kind {
	case models.FieldDate:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006", "2006-01-02T15:04"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format("2006-01-02")
			}
		}
	case models.FieldTime:
		for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format("15:04")
			}
		}
	}
	return value
}
