package entities

import "fmt"

// IssueKind classifies a non-fatal problem found while decoding or
// validating an EntitySet.
type IssueKind string

const (
	// CoercionFailure means a value could not be coerced and the field was dropped.
	CoercionFailure IssueKind = "coercion_failure"
	// ValidationWarning means a value was corrected in place.
	ValidationWarning IssueKind = "validation_warning"
	// SerializationFailure means a field was left out of a serialized record.
	SerializationFailure IssueKind = "serialization_failure"
)

// Issue describes one field-level problem. Issues never abort processing of
// sibling fields.
type Issue struct {
	Kind      IssueKind `json:"kind"`
	Field     Field     `json:"field"`
	Detail    string    `json:"detail"`
	Original  any       `json:"original,omitempty"`
	Corrected any       `json:"corrected,omitempty"`
}

func (i Issue) String() string {
	if i.Corrected != nil {
		return fmt.Sprintf("%s %s: %s (%v -> %v)", i.Kind, i.Field, i.Detail, i.Original, i.Corrected)
	}
	return fmt.Sprintf("%s %s: %s (%v)", i.Kind, i.Field, i.Detail, i.Original)
}

func warning(f Field, detail string, original, corrected any) Issue {
	return Issue{Kind: ValidationWarning, Field: f, Detail: detail, Original: original, Corrected: corrected}
}

func coercionFailure(f Field, original any) Issue {
	return Issue{Kind: CoercionFailure, Field: f, Detail: "value dropped", Original: original}
}
