package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type (
	// pgConn is the subset of *pgxpool.Pool used by Postgres.
	pgConn interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	}

	Postgres struct {
		db   pgConn
		pool *pgxpool.Pool
	}
)

// OpenPostgres connects to dburl and makes sure the users table exists.
func OpenPostgres(ctx context.Context, dburl string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dburl)
	if err != nil {
		return nil, fmt.Errorf("unable to configure postgres pool, cause %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping postgres, cause %w", err)
	}
	p, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// NewPostgres uses a connection owned by the caller, Close will not
// release it.
func NewPostgres(ctx context.Context, db pgConn) (*Postgres, error) {
	p := &Postgres{db: db}
	if err := p.init(ctx); err != nil {
		return nil, fmt.Errorf("unable to init postgres schema, cause %w", err)
	}
	return p, nil
}

func (p *Postgres) FindByUsername(ctx context.Context, username string) (User, error) {
	u := User{Username: username}
	err := p.db.QueryRow(ctx, `select user_id, password_hash from users where username = $1`, username).
		Scan(&u.ID, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	} else if err != nil {
		return User{}, fmt.Errorf("unable to lookup user, cause %w", err)
	}
	return u, nil
}

func (p *Postgres) Insert(ctx context.Context, username, passwordHash string) (User, error) {
	u := User{Username: username, PasswordHash: passwordHash}
	err := p.db.QueryRow(ctx, `insert into users(username, password_hash) values ($1, $2) returning user_id`,
		username, passwordHash).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return User{}, ErrUniqueViolation
	} else if err != nil {
		return User{}, fmt.Errorf("unable to insert user, cause %w", err)
	}
	return u, nil
}

func (p *Postgres) init(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `create table if not exists users(
		user_id bigserial primary key,
		username text not null unique,
		password_hash text not null
	)`)
	return err
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
