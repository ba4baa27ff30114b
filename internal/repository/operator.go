package repository

import (
	"context"
	"errors"
	"time"

	"data-audit/internal/domain"
)

var (
	// ErrOperatorNotFound is returned when no operator matches the lookup.
	ErrOperatorNotFound = errors.New("operator not found")
	// ErrOperatorExists is returned when registering a taken operator username.
	ErrOperatorExists = errors.New("operator already exists")
)

// OperatorRepository defines persistence operations for Operator principals.
type OperatorRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, op *domain.Operator) (int64, error)
	// FindPrincipal looks up the operator a login or token subject names.
	FindPrincipal(ctx context.Context, username string) (*domain.Operator, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}
