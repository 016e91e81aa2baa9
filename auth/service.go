package auth

import (
	"context"
	"net/http"

	"github.com/andrebq/authbox/session"
	"github.com/andrebq/authbox/userstore"
)

type (
	Service struct {
		users *userstore.Store
		codec *session.Codec
	}
)

var (
	ErrUsernameTaken      = userstore.ErrUsernameTaken
	ErrInvalidCredentials = userstore.ErrInvalidCredentials
	ErrInvalidInput       = userstore.ErrInvalidInput
)

func New(users *userstore.Store, codec *session.Codec) *Service {
	return &Service{users: users, codec: codec}
}

// Register creates the user and logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (userstore.User, session.Token, error) {
	u, err := s.users.Insert(ctx, username, password)
	if err != nil {
		return userstore.User{}, session.Token{}, err
	}
	return u, s.codec.Create(u.ID), nil
}

func (s *Service) Login(ctx context.Context, username, password string) (userstore.User, session.Token, error) {
	u, err := s.users.GetAndVerify(ctx, username, password)
	if err != nil {
		return userstore.User{}, session.Token{}, err
	}
	return u, s.codec.Create(u.ID), nil
}

// Authenticate verifies the session carried by a raw Cookie header. Only
// the ID of the returned user is set.
func (s *Service) Authenticate(cookieHeader string) (userstore.User, error) {
	tok, err := s.codec.FromCookieHeader(cookieHeader)
	if err != nil {
		return userstore.User{}, err
	}
	return userstore.User{ID: tok.UserID}, nil
}

// AuthenticateRequest is Authenticate using the cookies of r.
func (s *Service) AuthenticateRequest(r *http.Request) (userstore.User, error) {
	tok, err := s.codec.FromRequest(r)
	if err != nil {
		return userstore.User{}, err
	}
	return userstore.User{ID: tok.UserID}, nil
}

func (s *Service) LoginCookie(tok session.Token) *http.Cookie {
	return s.codec.CookieLogin(tok)
}

func (s *Service) LogoutCookie() *http.Cookie {
	return s.codec.CookieLogout()
}

// IsUnauthenticated reports whether err means the request carries no valid
// session.
func IsUnauthenticated(err error) bool {
	return session.IsUnauthenticated(err)
}
