// Package sqlite stores the stub API's users in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/stubapi/sqlite/migrations"
	"github.com/brattlof/roster/internal/usersapi"
)

// Store persists users in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now, newID: uuid.NewString}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// List returns every user in creation order.
func (s *Store) List(ctx context.Context) ([]usersapi.User, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, email FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []usersapi.User{}
	for rows.Next() {
		var u usersapi.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Get returns the user with id.
func (s *Store) Get(ctx context.Context, id string) (usersapi.User, error) {
	return s.scanOne(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id)
}

// FindByEmail returns the user registered with email.
func (s *Store) FindByEmail(ctx context.Context, email string) (usersapi.User, error) {
	return s.scanOne(ctx, `SELECT id, name, email FROM users WHERE email = ?`, email)
}

func (s *Store) scanOne(ctx context.Context, query string, arg string) (usersapi.User, error) {
	var u usersapi.User
	err := s.sqlDB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return usersapi.User{}, apperrors.E(apperrors.KindNotFound, "user not found")
	}
	if err != nil {
		return usersapi.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Create inserts a user with a fresh id. A taken email is a conflict.
func (s *Store) Create(ctx context.Context, in usersapi.Input) (usersapi.User, error) {
	u := usersapi.User{ID: s.newID(), Name: in.Name, Email: in.Email}
	now := s.now().UTC().UnixMilli()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, now, now,
	)
	if isUniqueViolation(err) {
		return usersapi.User{}, apperrors.Wrap(apperrors.KindConflict, "Email already exists", err)
	}
	if err != nil {
		return usersapi.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Update sets the non-empty fields of in on the user with id.
func (s *Store) Update(ctx context.Context, id string, in usersapi.Input) (usersapi.User, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET
		   name = CASE WHEN ? <> '' THEN ? ELSE name END,
		   email = CASE WHEN ? <> '' THEN ? ELSE email END,
		   updated_at = ?
		 WHERE id = ?`,
		in.Name, in.Name, in.Email, in.Email, s.now().UTC().UnixMilli(), id,
	)
	if isUniqueViolation(err) {
		return usersapi.User{}, apperrors.Wrap(apperrors.KindConflict, "Email already exists", err)
	}
	if err != nil {
		return usersapi.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return usersapi.User{}, apperrors.E(apperrors.KindNotFound, "user not found")
	}
	return s.Get(ctx, id)
}

// Delete removes the user with id.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return 0, apperrors.E(apperrors.KindNotFound, "user not found")
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
