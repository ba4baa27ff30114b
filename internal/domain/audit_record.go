package domain

import "time"

// AuditOperation names the kind of write an AuditRecord describes.
type AuditOperation string

const (
	AuditOperationCreate AuditOperation = "CREATE"
	AuditOperationUpdate AuditOperation = "UPDATE"
	AuditOperationDelete AuditOperation = "DELETE"
)

// Change captures a single business attribute before and after a write.
type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AuditRecord is one entry of a user's audit trail, written in the same
// transaction as the user row it describes.
type AuditRecord struct {
	ID        string            `json:"id"`
	UserID    int64             `json:"user_id"`
	Operation AuditOperation    `json:"operation"`
	Actor     string            `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Changes   map[string]Change `json:"changes,omitempty"`
}

// DiffUsers lists the business attributes that differ between before and after.
func DiffUsers(before, after User) map[string]Change {
	changes := map[string]Change{}
	if before.Name != after.Name {
		changes["name"] = Change{From: before.Name, To: after.Name}
	}
	if before.Username != after.Username {
		changes["username"] = Change{From: before.Username, To: after.Username}
	}
	return changes
}
