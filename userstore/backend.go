package userstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

type (
	// User is immutable once created. PasswordHash is the credential
	// record and must never be logged or returned to clients.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
	}

	// Backend is the persistence collaborator. Uniqueness of usernames is
	// its responsibility: Insert must fail with ErrUniqueViolation when
	// another row already holds the username, even under concurrent calls.
	Backend interface {
		FindByUsername(ctx context.Context, username string) (User, error)
		Insert(ctx context.Context, username, passwordHash string) (User, error)
	}

	ClosableBackend interface {
		Backend
		io.Closer
	}
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrUniqueViolation = errors.New("username already stored")
)

// Open picks a backend from dburl: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is treated as a path to a SQLite database.
func Open(ctx context.Context, dburl string) (ClosableBackend, error) {
	if strings.HasPrefix(dburl, "postgres://") || strings.HasPrefix(dburl, "postgresql://") {
		pg, err := OpenPostgres(ctx, dburl)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	db, err := OpenSQLite(ctx, dburl)
	if err != nil {
		return nil, err
	}
	return db, nil
}
