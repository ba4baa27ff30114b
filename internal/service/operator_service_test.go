package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"data-audit/internal/repository/sqlite"
)

func newOperatorService(t *testing.T, secret string) OperatorService {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "operators.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewOperatorRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return NewOperatorService(repo, secret)
}

func TestOperatorRegisterAndAuthenticate(t *testing.T) {
	svc := newOperatorService(t, "open-sesame")
	ctx := context.Background()

	op, err := svc.Register(ctx, "auditor", "correct horse", "open-sesame")
	require.NoError(t, err)
	assert.NotZero(t, op.ID)
	assert.Empty(t, op.PasswordHash)

	_, err = svc.Register(ctx, "auditor", "correct horse", "open-sesame")
	require.ErrorIs(t, err, ErrOperatorAlreadyExists)

	got, err := svc.Authenticate(ctx, "auditor", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)

	_, err = svc.Authenticate(ctx, "auditor", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost", "whatever1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOperatorRegisterRejectsBadInput(t *testing.T) {
	svc := newOperatorService(t, "open-sesame")
	ctx := context.Background()

	_, err := svc.Register(ctx, "auditor", "correct horse", "nope")
	require.ErrorIs(t, err, ErrInvalidRegistrationPassword)

	_, err = svc.Register(ctx, "auditor", "short", "open-sesame")
	require.ErrorIs(t, err, ErrInvalidOperator)

	_, err = svc.Register(ctx, " ", "correct horse", "open-sesame")
	require.ErrorIs(t, err, ErrInvalidOperator)

	_, err = newOperatorService(t, "").Register(ctx, "auditor", "correct horse", "")
	require.Error(t, err)
}

func TestOperatorAuthenticateRecordsLogin(t *testing.T) {
	svc := newOperatorService(t, "open-sesame")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.(*operatorService).now = func() time.Time { return at }
	ctx := context.Background()

	_, err := svc.Register(ctx, "Auditor", "correct horse", "open-sesame")
	require.NoError(t, err)

	op, err := svc.Authenticate(ctx, "auditor", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Auditor", op.Username)
	assert.Empty(t, op.PasswordHash)
	require.NotNil(t, op.LastLoginAt)
	assert.True(t, op.LastLoginAt.Equal(at))
}

func TestOperatorPrincipal(t *testing.T) {
	svc := newOperatorService(t, "open-sesame")
	ctx := context.Background()

	_, err := svc.Register(ctx, "Other.Auditor", "correct horse", "open-sesame")
	require.NoError(t, err)

	actor, err := svc.Principal(ctx, "other.auditor")
	require.NoError(t, err)
	assert.Equal(t, "Other.Auditor", actor)

	_, err = svc.Principal(ctx, "ghost")
	require.ErrorIs(t, err, ErrUnknownPrincipal)
}
