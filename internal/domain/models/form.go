package models

// FieldType is the input type of a form field. Informational types render
// content but never collect an answer.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeTextArea  FieldType = "textarea"
	FieldTypeNumber    FieldType = "number"
	FieldTypeSelect    FieldType = "select"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeDate      FieldType = "date"
	FieldTypeEmail     FieldType = "email"
	FieldTypeFile      FieldType = "file"
	FieldTypeStatement FieldType = "statement"
	FieldTypeHeading   FieldType = "heading"
	FieldTypeDivider   FieldType = "divider"
)

// IsInformational reports whether the type renders content without
// collecting an answer.
func (t FieldType) IsInformational() bool {
	switch t {
	case FieldTypeStatement, FieldTypeHeading, FieldTypeDivider:
		return true
	}
	return false
}

// FieldRule is a conditional show/require rule on a field. Fields names the
// answer fields the rule reads (by id or key); Condition is an optional
// expression over the answer map evaluated by pkg/expression. When Condition
// is empty the rule is satisfied as soon as every referenced field has a
// non-empty answer.
type FieldRule struct {
	Kind      string   `json:"kind"` // "show" | "require"
	Fields    []string `json:"fields"`
	Condition string   `json:"condition,omitempty"`
}

// FormField is one field of a form section. ID is the stable internal
// identifier; Key is the answer key. Stored target-field lists may reference
// either, so both resolve to the same graph node.
type FormField struct {
	ID       string      `json:"id"`
	Key      string      `json:"key"`
	Label    string      `json:"label"`
	Type     FieldType   `json:"type"`
	Required bool        `json:"required"`
	Rules    []FieldRule `json:"rules,omitempty"`
}

// FormSection is an ordered group of fields.
type FormSection struct {
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// FormDefinition is the parsed body of a form version.
type FormDefinition struct {
	Sections []FormSection `json:"sections"`
}

// FormVersion is an immutable published form revision.
type FormVersion struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	Definition *FormDefinition `json:"definition"`
}

// FileRef names an uploaded file referenced by a file field's answer.
type FileRef struct {
	FieldID      string `json:"field_id"`
	FileObjectID string `json:"file_object_id"`
}
