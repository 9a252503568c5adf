package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrUserExists is returned when a username is already registered.
var ErrUserExists = errors.New("username already exists")

// User is a row of the users system table. PasswordHash is never
// serialized.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrUserExists
		} else {
			err = fmt.Errorf("create user: %w", err)
		}
		return User{}, s.observe("create_user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, s.observe("create_user", fmt.Errorf("create user: last insert id: %w", err))
	}
	s.observe("create_user", nil)
	return User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// UserByName returns the user with the given username, or ErrNotFound.
func (s *Store) UserByName(ctx context.Context, username string) (User, error) {
	var u User
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = ErrNotFound
	case err != nil:
		err = fmt.Errorf("find user %q: %w", username, err)
	}
	u.PasswordHash = hash.String
	if err := s.observe("user_by_name", err); err != nil {
		return User{}, err
	}
	return u, nil
}

// Users returns every registered user in id order.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	users, err := s.users(ctx)
	return users, s.observe("users", err)
}

func (s *Store) users(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, username FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		var name sql.NullString
		if err := rows.Scan(&u.ID, &name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Username = name.String
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	if unique, ok := cgoUniqueViolation(err); ok {
		return unique
	}
	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		return pureErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
