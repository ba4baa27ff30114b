package audit

import "time"

// Fields holds the created/modified provenance of a persisted record.
// The zero value means the record has never been inserted.
type Fields struct {
	CreatedAt  time.Time
	CreatedBy  string
	ModifiedAt time.Time
	ModifiedBy string
}

// Auditable is implemented by records whose audit fields are managed by a Populator.
type Auditable interface {
	AuditFields() *Fields
}

// Inserted reports whether the creation fields have been populated.
func (f Fields) Inserted() bool {
	return !f.CreatedAt.IsZero() && f.CreatedBy != ""
}
