package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"data-audit/internal/domain"
	"data-audit/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRegistrationPassword indicates the registration secret is incorrect.
	ErrInvalidRegistrationPassword = errors.New("invalid registration password")
	// ErrOperatorAlreadyExists is returned when attempting to register with an existing username.
	ErrOperatorAlreadyExists = errors.New("operator already exists")
	// ErrInvalidOperator is returned for malformed registration input.
	ErrInvalidOperator = errors.New("invalid operator")
	// ErrUnknownPrincipal is returned when a token names an operator that is not registered.
	ErrUnknownPrincipal = errors.New("unknown principal")
)

// OperatorService registers and authenticates the principals that act on
// users, and maps a token subject back to the actor recorded for its writes.
type OperatorService interface {
	Register(ctx context.Context, username, password, providedSecret string) (*domain.Operator, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Operator, error)
	Principal(ctx context.Context, subject string) (string, error)
}

type operatorService struct {
	operators      repository.OperatorRepository
	registerSecret string
	now            func() time.Time
}

func NewOperatorService(operators repository.OperatorRepository, registerSecret string) OperatorService {
	return &operatorService{
		operators:      operators,
		registerSecret: strings.TrimSpace(registerSecret),
		now:            time.Now,
	}
}

func (s *operatorService) Register(ctx context.Context, username, password, providedSecret string) (*domain.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidOperator)
	}
	if len(strings.TrimSpace(password)) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidOperator)
	}
	if s.registerSecret == "" {
		return nil, fmt.Errorf("registration secret is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(providedSecret)), []byte(s.registerSecret)) != 1 {
		return nil, ErrInvalidRegistrationPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op := &domain.Operator{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if _, err := s.operators.Create(ctx, op); err != nil {
		if errors.Is(err, repository.ErrOperatorExists) {
			return nil, ErrOperatorAlreadyExists
		}
		return nil, err
	}
	return publicOperator(op), nil
}

// Authenticate checks the password and stamps the login time. The returned
// operator carries the stored username, which is what tokens are issued for.
func (s *operatorService) Authenticate(ctx context.Context, username, password string) (*domain.Operator, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	op, err := s.operators.FindPrincipal(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrOperatorNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	at := s.now().UTC()
	if err := s.operators.RecordLogin(ctx, op.ID, at); err != nil {
		return nil, err
	}
	op.LastLoginAt = &at
	return publicOperator(op), nil
}

// Principal resolves a token subject to the actor name written into audit
// fields. Subjects of operators that no longer exist are rejected.
func (s *operatorService) Principal(ctx context.Context, subject string) (string, error) {
	op, err := s.operators.FindPrincipal(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrOperatorNotFound) {
			return "", ErrUnknownPrincipal
		}
		return "", err
	}
	return op.Actor(), nil
}

// publicOperator drops the password hash before the operator leaves the service.
func publicOperator(op *domain.Operator) *domain.Operator {
	out := *op
	out.PasswordHash = ""
	return &out
}
