package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"data-audit/internal/audit"
	"data-audit/internal/domain"
	"data-audit/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	created_by TEXT NOT NULL,
	modified_at DATETIME NOT NULL,
	modified_by TEXT NOT NULL
);
`

const createAuditRecordsTable = `
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	operation TEXT NOT NULL,
	actor TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	changes TEXT NOT NULL DEFAULT '{}'
);
`

const createAuditRecordsIndex = `
CREATE INDEX IF NOT EXISTS idx_audit_records_user ON audit_records (user_id, recorded_at);
`

const selectUserColumns = `SELECT id, name, username, created_at, created_by, modified_at, modified_by FROM users`

// UserRepository stores users in sqlite. Every write runs the populator and
// the audit trail insert inside the same transaction as the row change.
type UserRepository struct {
	db        *sql.DB
	populator *audit.Populator
	actors    audit.ActorResolver
}

func NewUserRepository(db *sql.DB, populator *audit.Populator, actors audit.ActorResolver) repository.UserRepository {
	if populator == nil {
		populator = audit.NewPopulator()
	}
	return &UserRepository{db: db, populator: populator, actors: actors}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createAuditRecordsTable); err != nil {
		return fmt.Errorf("create audit records table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createAuditRecordsIndex); err != nil {
		return fmt.Errorf("create audit records index: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	if user == nil {
		return 0, fmt.Errorf("insert user: %w", audit.ErrNilRecord)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	before := user.Fields
	committed := false
	defer func() {
		if !committed {
			user.Fields = before
		}
	}()

	if err := r.populator.OnInsert(ctx, user, r.actors); err != nil {
		return 0, fmt.Errorf("populate audit fields: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO users (name, username, created_at, created_by, modified_at, modified_by)
VALUES (?, ?, ?, ?, ?, ?)`,
		user.Name,
		user.Username,
		user.CreatedAt,
		user.CreatedBy,
		user.ModifiedAt,
		user.ModifiedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", user.Username, repository.ErrUserExists)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}

	if err := insertAuditRecord(ctx, tx, domain.AuditRecord{
		UserID:    id,
		Operation: domain.AuditOperationCreate,
		Actor:     user.CreatedBy,
		Timestamp: user.CreatedAt,
		Changes:   domain.DiffUsers(domain.User{}, *user),
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit user insert: %w", err)
	}
	committed = true
	user.ID = id
	return id, nil
}

// Update writes the business attributes and modification fields of user.
// The stored row is authoritative: created_at and created_by are taken from it
// and never rewritten, and the new modified_at is computed against the stored
// one, so a stale copy cannot move it backwards.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("update user: %w", audit.ErrNilRecord)
	}
	if !user.Inserted() {
		return fmt.Errorf("populate audit fields: %w", audit.ErrNotInserted)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getUser(ctx, tx, `WHERE id = ?`, user.ID)
	if err != nil {
		return err
	}

	before := user.Fields
	committed := false
	defer func() {
		if !committed {
			user.Fields = before
		}
	}()

	user.CreatedAt = current.CreatedAt
	user.CreatedBy = current.CreatedBy
	user.ModifiedAt = current.ModifiedAt
	if err := r.populator.OnUpdate(ctx, user, r.actors); err != nil {
		return fmt.Errorf("populate audit fields: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE users
SET name=?, username=?, modified_at=?, modified_by=?
WHERE id=?`,
		user.Name,
		user.Username,
		user.ModifiedAt,
		user.ModifiedBy,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %q: %w", user.Username, repository.ErrUserExists)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	} else if aff == 0 {
		return repository.ErrUserNotFound
	}

	if err := insertAuditRecord(ctx, tx, domain.AuditRecord{
		UserID:    user.ID,
		Operation: domain.AuditOperationUpdate,
		Actor:     user.ModifiedBy,
		Timestamp: user.ModifiedAt,
		Changes:   domain.DiffUsers(*current, *user),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user update: %w", err)
	}
	committed = true
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	actor, err := audit.ResolveActor(ctx, r.actors)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getUser(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := insertAuditRecord(ctx, tx, domain.AuditRecord{
		UserID:    id,
		Operation: domain.AuditOperationDelete,
		Actor:     actor,
		Timestamp: r.populator.Now(),
		Changes:   domain.DiffUsers(*current, domain.User{}),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, r.db, `WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return getUser(ctx, r.db, `WHERE username = ?`, username)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUserColumns+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListAuditRecords(ctx context.Context, userID int64) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, operation, actor, recorded_at, changes
FROM audit_records
WHERE user_id = ?
ORDER BY recorded_at ASC, rowid ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			operation string
			changes   string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &operation, &rec.Actor, &rec.Timestamp, &changes); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Operation = domain.AuditOperation(operation)
		rec.Timestamp = rec.Timestamp.UTC()
		if err := json.Unmarshal([]byte(changes), &rec.Changes); err != nil {
			return nil, fmt.Errorf("decode audit changes: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getUser(ctx context.Context, q queryer, where string, args ...any) (*domain.User, error) {
	return scanUser(q.QueryRowContext(ctx, selectUserColumns+" "+where, args...))
}

func insertAuditRecord(ctx context.Context, e execer, rec domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	changes := rec.Changes
	if changes == nil {
		changes = map[string]domain.Change{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}
	if _, err := e.ExecContext(ctx, `
INSERT INTO audit_records (id, user_id, operation, actor, recorded_at, changes)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		string(rec.Operation),
		rec.Actor,
		rec.Timestamp.UTC(),
		string(payload),
	); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user       domain.User
		createdAt  time.Time
		modifiedAt time.Time
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&createdAt,
		&user.CreatedBy,
		&modifiedAt,
		&user.ModifiedBy,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = createdAt.UTC()
	user.ModifiedAt = modifiedAt.UTC()
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
