package service

import (
	"context"
	"errors"
	"strings"

	"data-audit/internal/audit"
	"data-audit/internal/domain"
	"data-audit/internal/metrics"
	"data-audit/internal/repository"
)

// UserService describes the audited user lifecycle.
type UserService interface {
	Create(ctx context.Context, name, username string) (*domain.User, error)
	Update(ctx context.Context, id int64, name, username string) (*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id int64) error
	AuditTrail(ctx context.Context, id int64) ([]domain.AuditRecord, error)
}

type userService struct {
	users   repository.UserRepository
	metrics *metrics.Metrics
}

func NewUserService(users repository.UserRepository, m *metrics.Metrics) UserService {
	return &userService{
		users:   users,
		metrics: m,
	}
}

func (s *userService) Create(ctx context.Context, name, username string) (*domain.User, error) {
	user := &domain.User{
		Name:     strings.TrimSpace(name),
		Username: strings.TrimSpace(username),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	s.metrics.IncWrite(string(domain.AuditOperationCreate))
	return user, nil
}

// Update changes the non-empty attributes of an existing user. Empty values
// keep the stored ones.
func (s *userService) Update(ctx context.Context, id int64, name, username string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(name); v != "" {
		user.Name = v
	}
	if v := strings.TrimSpace(username); v != "" {
		user.Username = v
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	s.metrics.IncWrite(string(domain.AuditOperationUpdate))
	return user, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		s.recordFailure(err)
		return err
	}
	s.metrics.IncWrite(string(domain.AuditOperationDelete))
	return nil
}

// AuditTrail returns every recorded write of the user, including after deletion.
func (s *userService) AuditTrail(ctx context.Context, id int64) ([]domain.AuditRecord, error) {
	records, err := s.users.ListAuditRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, repository.ErrUserNotFound
	}
	return records, nil
}

func (s *userService) recordFailure(err error) {
	switch {
	case errors.Is(err, audit.ErrNotInserted):
		s.metrics.IncFailure("not_inserted")
	case errors.Is(err, audit.ErrNoActor):
		s.metrics.IncFailure("no_actor")
	case errors.Is(err, audit.ErrResolveActor):
		s.metrics.IncFailure("resolver")
	}
}
