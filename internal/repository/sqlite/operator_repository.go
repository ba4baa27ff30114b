package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"data-audit/internal/domain"
	"data-audit/internal/repository"
)

const createOperatorsTable = `
CREATE TABLE IF NOT EXISTS operators (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	last_login_at DATETIME
);
`

// OperatorRepository stores the principals whose usernames end up in the
// audit columns of users. Usernames are matched case-insensitively so one
// person cannot register twice under different casing.
type OperatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) repository.OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createOperatorsTable); err != nil {
		return fmt.Errorf("create operators table: %w", err)
	}
	return nil
}

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) (int64, error) {
	if op == nil || strings.TrimSpace(op.Username) == "" {
		return 0, fmt.Errorf("insert operator: username is required")
	}
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO operators (username, password_hash, created_at)
VALUES (?, ?, ?)
RETURNING id`,
		op.Username,
		op.PasswordHash,
		createdAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert operator %q: %w", op.Username, repository.ErrOperatorExists)
		}
		return 0, fmt.Errorf("insert operator: %w", err)
	}

	op.ID = id
	op.CreatedAt = createdAt
	return id, nil
}

// FindPrincipal returns the operator registered under username. The stored
// spelling is returned, so the actor recorded for a write does not depend on
// how the login was typed.
func (r *OperatorRepository) FindPrincipal(ctx context.Context, username string) (*domain.Operator, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, created_at, last_login_at
FROM operators
WHERE username = ?`,
		strings.TrimSpace(username),
	)

	var (
		op        domain.Operator
		lastLogin sql.NullTime
	)
	if err := row.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	if lastLogin.Valid {
		at := lastLogin.Time.UTC()
		op.LastLoginAt = &at
	}
	return &op, nil
}

func (r *OperatorRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE operators SET last_login_at=? WHERE id=?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("record operator login: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("operator login rows affected: %w", err)
	} else if aff == 0 {
		return repository.ErrOperatorNotFound
	}
	return nil
}
