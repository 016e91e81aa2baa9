// Package credential turns plaintext passwords into storable Argon2id
// records and checks plaintexts against them.
//
// A record carries its own salt and cost parameters using the PHC string
// format, so nothing besides the record needs to be stored:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
//
// Hashing is expensive on purpose. Every Hasher bounds how many Argon2
// computations may run at once, callers waiting for a slot can give up by
// cancelling their context.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

type (
	// Params controls the Argon2id cost. MemoryKiB is expressed in KiB
	// as required by argon2.IDKey.
	Params struct {
		MemoryKiB   uint32
		Iterations  uint32
		Parallelism uint8
		SaltLength  uint32
		KeyLength   uint32
	}

	Hasher struct {
		params Params
		slots  *semaphore.Weighted
		rand   io.Reader
		dummy  string
	}

	Option func(*Hasher)
)

var (
	errMalformedRecord = errors.New("malformed password record")
	b64                = base64.RawStdEncoding
)

// DefaultParams returns the parameters used when nothing else is
// configured: 64 MiB, 3 passes and up to 4 lanes.
func DefaultParams() Params {
	threads := runtime.NumCPU()
	if threads > 4 {
		threads = 4
	}
	if threads < 1 {
		threads = 1
	}
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads),
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters argon2 cannot work with or that would
// produce records too weak to be worth storing.
func (p Params) Validate() error {
	switch {
	case p.Iterations == 0:
		return errors.New("credential: iterations must be at least 1")
	case p.Parallelism == 0:
		return errors.New("credential: parallelism must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("credential: memory must be at least %v KiB for parallelism %v", 8*uint32(p.Parallelism), p.Parallelism)
	case p.SaltLength < 8 || p.SaltLength > 64:
		return fmt.Errorf("credential: salt length %v out of range [8..64]", p.SaltLength)
	case p.KeyLength < 16 || p.KeyLength > 128:
		return fmt.Errorf("credential: key length %v out of range [16..128]", p.KeyLength)
	}
	return nil
}

// WithConcurrency sets how many hashes may be computed at the same time.
func WithConcurrency(n int64) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.slots = semaphore.NewWeighted(n)
		}
	}
}

// WithRandom replaces the salt source, crypto/rand is used by default.
func WithRandom(r io.Reader) Option {
	return func(h *Hasher) {
		if r != nil {
			h.rand = r
		}
	}
}

func New(params Params, opts ...Option) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{
		params: params,
		slots:  semaphore.NewWeighted(int64(runtime.NumCPU())),
		rand:   rand.Reader,
	}
	for _, o := range opts {
		o(h)
	}
	// all-zero key, recomputing it costs the same as a real record
	// but no password will ever produce it
	h.dummy = encode(params, make([]byte, params.SaltLength), make([]byte, params.KeyLength))
	return h, nil
}

// Params returns the parameters used to produce new records.
func (h *Hasher) Params() Params {
	return h.params
}

// DummyHash returns a well-formed record which never matches any password.
// Verifying against it takes as long as verifying a real record.
func (h *Hasher) DummyHash() string {
	return h.dummy
}

// Hash derives a new record from password using a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("credential: unable to generate salt, cause %w", err)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("credential: unable to acquire hashing slot, cause %w", err)
	}
	defer h.slots.Release(1)
	key := argon2.IDKey([]byte(password), salt,
		h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)
	return encode(h.params, salt, key), nil
}

// Verify reports whether password matches record.
//
// A malformed record and a wrong password both return false with a nil
// error, malformed records are checked against the dummy record so both
// cases take the same time. The error is only set when ctx ends before a
// hashing slot becomes available.
func (h *Hasher) Verify(ctx context.Context, password string, record string) (bool, error) {
	params, salt, expected, err := decode(record)
	malformed := err != nil || !h.withinBounds(params)
	if malformed {
		params, salt, expected, _ = decode(h.dummy)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("credential: unable to acquire hashing slot, cause %w", err)
	}
	defer h.slots.Release(1)
	key := argon2.IDKey([]byte(password), salt,
		params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))
	match := subtle.ConstantTimeCompare(key, expected) == 1
	return match && !malformed, nil
}

// withinBounds accepts records produced with older or smaller settings but
// refuses ones far more expensive than what this hasher is configured for.
func (h *Hasher) withinBounds(got Params) bool {
	limits := h.params
	return got.MemoryKiB <= limits.MemoryKiB*2 &&
		got.Iterations <= limits.Iterations*2 &&
		uint32(got.Parallelism) <= uint32(limits.Parallelism)*2 &&
		got.SaltLength >= 8 && got.SaltLength <= 64 &&
		got.KeyLength >= 16 && got.KeyLength <= 128
}

func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

func decode(record string) (Params, []byte, []byte, error) {
	parts := strings.Split(record, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, errMalformedRecord
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Params{}, nil, nil, errMalformedRecord
	}
	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Params{}, nil, nil, errMalformedRecord
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, errMalformedRecord
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, errMalformedRecord
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, errMalformedRecord
	}
	return Params{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
