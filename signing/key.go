// Package signing holds the process-wide secret used to authenticate
// session cookies.
//
// A Key is created once at startup and shared by pointer afterwards. It is
// never mutated after construction, so concurrent Sign and Verify calls
// need no locking.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	DefaultEnvVar = "AUTHBOX_SIGNING_KEY"

	// MinKeySize is the smallest secret accepted, in bytes.
	MinKeySize = 32

	// TagSize is the length of the tags produced by Sign.
	TagSize = sha256.Size
)

type (
	Key struct {
		secret []byte
	}
)

var (
	ErrKeyMissing  = errors.New("signing: key not configured")
	ErrKeyInvalid  = errors.New("signing: key is not valid base64")
	ErrKeyTooShort = fmt.Errorf("signing: key must have at least %v bytes", MinKeySize)
)

// New copies raw into a new Key.
func New(raw []byte) (*Key, error) {
	if len(raw) < MinKeySize {
		return nil, ErrKeyTooShort
	}
	secret := make([]byte, len(raw))
	copy(secret, raw)
	return &Key{secret: secret}, nil
}

// Generate reads a new MinKeySize key from r, crypto/rand is used when r
// is nil.
func Generate(r io.Reader) (*Key, error) {
	if r == nil {
		r = rand.Reader
	}
	secret := make([]byte, MinKeySize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("signing: unable to generate key, cause %w", err)
	}
	return &Key{secret: secret}, nil
}

// FromEnv decodes a base64 key from the environment variable varname and
// removes the value from the environment so child processes and crash
// dumps do not inherit it.
func FromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (*Key, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := strings.TrimSpace(getfn(varname))
	_ = setfn(varname, "")
	if val == "" {
		return nil, fmt.Errorf("%w: environment variable %v is empty", ErrKeyMissing, varname)
	}
	raw, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	defer zero(raw)
	return New(raw)
}

// Encode returns the base64 form accepted by FromEnv.
func (k *Key) Encode() string {
	return base64.StdEncoding.EncodeToString(k.mustSecret())
}

// Sign computes the HMAC-SHA256 tag of payload.
func (k *Key) Sign(payload []byte) []byte {
	m := hmac.New(sha256.New, k.mustSecret())
	m.Write(payload)
	return m.Sum(nil)
}

// Verify recomputes the tag of payload and compares it with tag in
// constant time.
func (k *Key) Verify(payload, tag []byte) bool {
	return hmac.Equal(k.Sign(payload), tag)
}

// String never renders the secret.
func (k *Key) String() string {
	return "signing.Key(redacted)"
}

func (k *Key) GoString() string {
	return k.String()
}

func (k *Key) mustSecret() []byte {
	if k == nil || len(k.secret) < MinKeySize {
		panic("signing: use of an uninitialized key")
	}
	return k.secret
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
