package domain

import "time"

// Operator is a principal that can authenticate and act as the auditor of writes.
type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Actor is the identifier written to createdBy/modifiedBy when this operator acts.
func (o *Operator) Actor() string {
	return o.Username
}
