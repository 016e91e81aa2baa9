package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-sqlite3"
)

type (
	SQLite struct {
		db *sql.DB
	}
)

func openDatabase(ctx context.Context, file string) (*sql.DB, error) {
	err := os.MkdirAll(filepath.Dir(file), 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory to store %v, cause %w", file, err)
	}
	connstr := fmt.Sprintf("file:%v?_writable_schema=false&_journal=wal&_busy_timeout=5000&mode=rwc", file)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %v", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping database %v, cause %v", file, err)
	}
	return conn, nil
}

// OpenSQLite opens (creating when needed) the database stored at file.
func OpenSQLite(ctx context.Context, file string) (*SQLite, error) {
	conn, err := openDatabase(ctx, file)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: conn}
	err = s.init(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init database %v, cause %v", file, err)
	}
	return s, nil
}

func (s *SQLite) FindByUsername(ctx context.Context, username string) (User, error) {
	u := User{Username: username}
	err := s.db.QueryRowContext(ctx, `select user_id, password_hash from users where username_hash64 = ? and username = ?`,
		usernameHash(username), username).Scan(&u.ID, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	} else if err != nil {
		return User{}, fmt.Errorf("unable to lookup user, cause %w", err)
	}
	return u, nil
}

func (s *SQLite) Insert(ctx context.Context, username, passwordHash string) (User, error) {
	u := User{Username: username, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `insert into users(username, username_hash64, password_hash) values (?, ?, ?) returning user_id`,
		username, usernameHash(username), passwordHash).Scan(&u.ID)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return User{}, ErrUniqueViolation
	} else if err != nil {
		return User{}, fmt.Errorf("unable to insert user, cause %w", err)
	}
	return u, nil
}

func (s *SQLite) init(ctx context.Context) error {
	for _, cmd := range []string{
		`create table if not exists users(
			user_id integer primary key autoincrement,
			username text not null unique,
			username_hash64 integer not null,
			password_hash text not null
		)`,
		`create index if not exists idx_users_username_hash64
			on users(username_hash64)
		`,
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func usernameHash(username string) int64 {
	return int64(xxhash.Sum64String(username))
}
