// Package session mints stateless session tokens and moves them in and
// out of cookies.
//
// A serialized token has two base64url segments separated by a dot:
//
//	<payload>.<tag>
//
// The payload is a fixed 25 byte record (version, user id, issued at,
// expires at; big endian, times in unix seconds, zero expiry meaning
// none). The tag is the HMAC of the payload segment exactly as it is
// transmitted, so nothing is re-encoded before checking it.
//
// Verification is a single linear pipeline: structure, then signature,
// then fields, then expiry. No field is read before the signature has
// been checked.
package session

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/andrebq/authbox/signing"
)

const (
	payloadVersion = 1
	payloadSize    = 1 + 8 + 8 + 8
	separator      = "."
)

type (
	Token struct {
		UserID    int64
		IssuedAt  time.Time
		ExpiresAt time.Time
	}
)

var (
	enc = base64.RawURLEncoding.Strict()

	errSegments    = errors.New("expecting exactly two non-empty segments")
	errAlphabet    = errors.New("segment outside the base64url alphabet")
	errTagSize     = errors.New("tag has the wrong size")
	errVersion     = errors.New("unknown payload version")
	errPayloadSize = errors.New("payload has the wrong size")
	errUserID      = errors.New("user id must be positive")
)

// New captures userID and now. A positive ttl sets ExpiresAt.
func New(userID int64, now time.Time, ttl time.Duration) Token {
	tok := Token{
		UserID:   userID,
		IssuedAt: now.UTC().Truncate(time.Second),
	}
	if ttl > 0 {
		tok.ExpiresAt = tok.IssuedAt.Add(ttl)
	}
	return tok
}

// HasExpiry reports whether the token carries an expiration time.
func (t Token) HasExpiry() bool {
	return !t.ExpiresAt.IsZero()
}

// Serialize encodes t and appends the tag computed by key.
func Serialize(t Token, key *signing.Key) string {
	payload := enc.EncodeToString(t.marshal())
	tag := key.Sign([]byte(payload))
	return payload + separator + enc.EncodeToString(tag)
}

// ParseAndVerify returns the token carried by value if key signed it and
// it has not expired at now. Errors are *Error values.
func ParseAndVerify(value string, key *signing.Key, now time.Time) (Token, error) {
	payload, tag, err := split(value)
	if err != nil {
		return Token{}, fail(ErrMalformed, err)
	}
	if !key.Verify([]byte(payload), tag) {
		return Token{}, fail(ErrBadSignature, nil)
	}
	tok, err := unmarshal(payload)
	if err != nil {
		return Token{}, fail(ErrMalformed, err)
	}
	if tok.HasExpiry() && !now.Before(tok.ExpiresAt) {
		return Token{}, fail(ErrExpired, nil)
	}
	return tok, nil
}

// split checks the structure only, the payload stays encoded.
func split(value string) (string, []byte, error) {
	parts := strings.Split(value, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", nil, errSegments
	}
	if !validAlphabet(parts[0]) || !validAlphabet(parts[1]) {
		return "", nil, errAlphabet
	}
	if _, err := enc.DecodeString(parts[0]); err != nil {
		return "", nil, err
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", nil, err
	}
	if len(tag) != signing.TagSize {
		return "", nil, errTagSize
	}
	return parts[0], tag, nil
}

// validAlphabet rejects CR and LF which the base64 decoder would
// otherwise skip silently.
func validAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func (t Token) marshal() []byte {
	buf := make([]byte, payloadSize)
	buf[0] = payloadVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(t.UserID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(t.IssuedAt.Unix()))
	var exp int64
	if t.HasExpiry() {
		exp = t.ExpiresAt.Unix()
	}
	binary.BigEndian.PutUint64(buf[17:25], uint64(exp))
	return buf
}

func unmarshal(payload string) (Token, error) {
	buf, err := enc.DecodeString(payload)
	if err != nil {
		return Token{}, err
	}
	if len(buf) != payloadSize {
		return Token{}, errPayloadSize
	}
	if buf[0] != payloadVersion {
		return Token{}, errVersion
	}
	tok := Token{
		UserID:   int64(binary.BigEndian.Uint64(buf[1:9])),
		IssuedAt: time.Unix(int64(binary.BigEndian.Uint64(buf[9:17])), 0).UTC(),
	}
	if tok.UserID <= 0 {
		return Token{}, errUserID
	}
	if exp := int64(binary.BigEndian.Uint64(buf[17:25])); exp != 0 {
		tok.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return tok, nil
}
