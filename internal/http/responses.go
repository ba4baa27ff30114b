package http

import (
	"time"

	"data-audit/internal/domain"
	"data-audit/internal/storage"
)

// timeLayout keeps sub-second precision so successive modifications stay distinguishable.
const timeLayout = time.RFC3339Nano

type UserResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	CreatedAt  string `json:"created_at"`
	CreatedBy  string `json:"created_by"`
	ModifiedAt string `json:"modified_at"`
	ModifiedBy string `json:"modified_by"`
}

type AuditRecordResponse struct {
	ID        string                   `json:"id"`
	UserID    int64                    `json:"user_id"`
	Operation domain.AuditOperation    `json:"operation"`
	Actor     string                   `json:"actor"`
	Timestamp string                   `json:"timestamp"`
	Changes   map[string]domain.Change `json:"changes,omitempty"`
}

type OperatorResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Name:       user.Name,
		Username:   user.Username,
		CreatedAt:  user.CreatedAt.UTC().Format(timeLayout),
		CreatedBy:  user.CreatedBy,
		ModifiedAt: user.ModifiedAt.UTC().Format(timeLayout),
		ModifiedBy: user.ModifiedBy,
	}
}

func auditRecordToResponse(rec domain.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Operation: rec.Operation,
		Actor:     rec.Actor,
		Timestamp: rec.Timestamp.UTC().Format(timeLayout),
		Changes:   rec.Changes,
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
