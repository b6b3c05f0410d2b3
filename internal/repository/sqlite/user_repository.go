package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_lc TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	age INTEGER NOT NULL CHECK (age BETWEEN 1 AND 120),
	created_at DATETIME NOT NULL
);
`

const userColumns = `id, name, email, password_hash, age, created_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	if err := r.ensureUserColumns(ctx); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS users_created_at ON users (created_at)`); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}

// ensureUserColumns upgrades tables created before name_lc existed.
func (r *UserRepository) ensureUserColumns(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `PRAGMA table_info(users)`)
	if err != nil {
		return fmt.Errorf("describe users table: %w", err)
	}
	defer rows.Close()

	columns := map[string]struct{}{}
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan pragma table info: %w", err)
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pragma table info: %w", err)
	}
	rows.Close()

	if _, exists := columns["name_lc"]; !exists {
		if _, err := r.db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN name_lc TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add column name_lc: %w", err)
		}
	}
	return r.backfillNameIndex(ctx)
}

// backfillNameIndex fills name_lc in Go because SQLite's LOWER only folds ASCII.
func (r *UserRepository) backfillNameIndex(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM users WHERE name_lc = ''`)
	if err != nil {
		return fmt.Errorf("select users without name_lc: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan user name: %w", err)
		}
		pending[id] = foldCase(name)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("iterate user names: %w", err)
	}

	for id, folded := range pending {
		if _, err := r.db.ExecContext(ctx, `UPDATE users SET name_lc = ? WHERE id = ?`, folded, id); err != nil {
			return fmt.Errorf("backfill name_lc: %w", err)
		}
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	record := *user
	record.Name = strings.TrimSpace(record.Name)
	record.Email = domain.NormalizeEmail(record.Email)
	if err := record.Validate(); err != nil {
		return nil, err
	}

	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	// The UNIQUE constraint on email is the only uniqueness check.
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, name_lc, email, password_hash, age, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Name,
		foldCase(record.Name),
		record.Email,
		record.PasswordHash,
		record.Age,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &record, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email = ?`,
		domain.NormalizeEmail(email),
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	var (
		clauses []string
		args    []any
	)
	// name_lc and email hold Go-folded text, so LIKE compares already-folded strings.
	if name := strings.TrimSpace(filter.Name); name != "" {
		clauses = append(clauses, `name_lc LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(name))
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		clauses = append(clauses, `email LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(email))
	}
	if filter.MinAge != nil {
		clauses = append(clauses, `age >= ?`)
		args = append(args, *filter.MinAge)
	}
	if filter.MaxAge != nil {
		clauses = append(clauses, `age <= ?`)
		args = append(args, *filter.MaxAge)
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?`,
		id,
	))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete user: %w", err)
	}
	return user, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Age,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func foldCase(s string) string {
	return strings.ToLower(s)
}

// likePattern escapes LIKE wildcards so the term matches as a literal substring.
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(foldCase(term))
	return "%" + escaped + "%"
}
