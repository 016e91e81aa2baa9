// Package userstore registers users and checks their credentials.
//
// The Store hashes passwords before they reach a Backend and never tells
// callers whether a login failed because the username is unknown or
// because the password is wrong.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 64
	MaxPasswordLength = 1024
)

type (
	Hasher interface {
		Hash(ctx context.Context, password string) (string, error)
		Verify(ctx context.Context, password, record string) (bool, error)
		DummyHash() string
	}

	Store struct {
		backend Backend
		hasher  Hasher
	}
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid username or password format")
)

func New(backend Backend, hasher Hasher) *Store {
	return &Store{backend: backend, hasher: hasher}
}

// NormalizeUsername trims surrounding spaces and reports whether the
// result is an acceptable username.
func NormalizeUsername(username string) (string, bool) {
	username = strings.TrimSpace(username)
	if len(username) == 0 || len(username) > MaxUsernameLength || !utf8.ValidString(username) {
		return "", false
	}
	for _, r := range username {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return username, true
}

func validPassword(password string) bool {
	return len(password) > 0 && len(password) <= MaxPasswordLength
}

// Insert registers a new user. ErrUsernameTaken is returned when the
// backend already holds the username.
func (s *Store) Insert(ctx context.Context, username, password string) (User, error) {
	username, ok := NormalizeUsername(username)
	if !ok || !validPassword(password) {
		return User{}, ErrInvalidInput
	}
	record, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return User{}, fmt.Errorf("userstore: unable to hash password, cause %w", err)
	}
	u, err := s.backend.Insert(ctx, username, record)
	if errors.Is(err, ErrUniqueViolation) {
		return User{}, ErrUsernameTaken
	} else if err != nil {
		return User{}, fmt.Errorf("userstore: unable to register %v, cause %w", username, err)
	}
	return u, nil
}

// GetAndVerify returns the user identified by username if password
// matches. Unknown users and wrong passwords both produce
// ErrInvalidCredentials after the same amount of hashing work.
func (s *Store) GetAndVerify(ctx context.Context, username, password string) (User, error) {
	username, ok := NormalizeUsername(username)
	if !ok || !validPassword(password) {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.backend.FindByUsername(ctx, username)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("userstore: unable to lookup user, cause %w", err)
	}
	record := u.PasswordHash
	if !found {
		record = s.hasher.DummyHash()
	}
	match, err := s.hasher.Verify(ctx, password, record)
	if err != nil {
		return User{}, fmt.Errorf("userstore: unable to verify password, cause %w", err)
	}
	if !found || !match {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
