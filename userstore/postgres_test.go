package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectExec("create table if not exists users").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	p, err := NewPostgres(context.Background(), mock)
	require.NoError(t, err)
	return p, mock
}

func TestPostgresInsert(t *testing.T) {
	ctx := context.Background()
	p, mock := mockPostgres(t)
	defer mock.Close()

	mock.ExpectQuery("insert into users").
		WithArgs("alice", "record").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(int64(1)))
	mock.ExpectQuery("insert into users").
		WithArgs("alice", "other").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	u, err := p.Insert(ctx, "alice", "record")
	require.NoError(t, err)
	assert.Equal(t, User{ID: 1, Username: "alice", PasswordHash: "record"}, u)

	_, err = p.Insert(ctx, "alice", "other")
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expecting %v got %v", ErrUniqueViolation, err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFind(t *testing.T) {
	ctx := context.Background()
	p, mock := mockPostgres(t)
	defer mock.Close()

	mock.ExpectQuery("select user_id, password_hash from users").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "password_hash"}).AddRow(int64(1), "record"))
	mock.ExpectQuery("select user_id, password_hash from users").
		WithArgs("bob").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("select user_id, password_hash from users").
		WithArgs("carol").
		WillReturnError(errors.New("connection reset"))

	u, err := p.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, User{ID: 1, Username: "alice", PasswordHash: "record"}, u)

	_, err = p.FindByUsername(ctx, "bob")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expecting %v got %v", ErrNotFound, err)
	}
	_, err = p.FindByUsername(ctx, "carol")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
