package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"data-audit/internal/domain"
	"data-audit/internal/repository"
)

func newOperatorRepository(t *testing.T) repository.OperatorRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "operators.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewOperatorRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestOperatorRepository(t *testing.T) {
	ctx := context.Background()
	repo := newOperatorRepository(t)

	op := &domain.Operator{Username: "auditor", PasswordHash: "hash"}
	id, err := repo.Create(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, id, op.ID)
	assert.False(t, op.CreatedAt.IsZero())

	found, err := repo.FindPrincipal(ctx, "auditor")
	require.NoError(t, err)
	assert.Equal(t, op.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)
	assert.Nil(t, found.LastLoginAt)

	_, err = repo.Create(ctx, &domain.Operator{Username: "auditor", PasswordHash: "x"})
	require.ErrorIs(t, err, repository.ErrOperatorExists)

	_, err = repo.FindPrincipal(ctx, "nobody")
	require.ErrorIs(t, err, repository.ErrOperatorNotFound)

	_, err = repo.Create(ctx, &domain.Operator{Username: "  ", PasswordHash: "x"})
	require.Error(t, err)
}

func TestOperatorUsernamesIgnoreCase(t *testing.T) {
	ctx := context.Background()
	repo := newOperatorRepository(t)

	_, err := repo.Create(ctx, &domain.Operator{Username: "Other.Auditor", PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.Operator{Username: "other.auditor", PasswordHash: "x"})
	require.ErrorIs(t, err, repository.ErrOperatorExists)

	found, err := repo.FindPrincipal(ctx, " OTHER.AUDITOR ")
	require.NoError(t, err)
	assert.Equal(t, "Other.Auditor", found.Username)
	assert.Equal(t, "Other.Auditor", found.Actor())
}

func TestOperatorRecordLogin(t *testing.T) {
	ctx := context.Background()
	repo := newOperatorRepository(t)

	op := &domain.Operator{Username: "auditor", PasswordHash: "hash"}
	_, err := repo.Create(ctx, op)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordLogin(ctx, op.ID, at))

	found, err := repo.FindPrincipal(ctx, "auditor")
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.True(t, found.LastLoginAt.Equal(at))

	require.ErrorIs(t, repo.RecordLogin(ctx, 4242, at), repository.ErrOperatorNotFound)
}
