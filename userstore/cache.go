package userstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
)

type (
	// Cached keeps recently used rows in memory. Users never change after
	// registration so a cached row can not go stale; lookups for unknown
	// usernames always reach the backend.
	Cached struct {
		backend Backend
		cache   *bigcache.BigCache
	}

	xxhasher struct{}
)

func (xxhasher) Sum64(s string) uint64 { return xxhash.Sum64String(s) }

// NewCached wraps backend with an in-memory cache holding entries for at
// most lifetime and using up to maxMB megabytes (zero means unbounded).
func NewCached(ctx context.Context, backend Backend, lifetime time.Duration, maxMB int) (*Cached, error) {
	cfg := bigcache.DefaultConfig(lifetime)
	cfg.Hasher = xxhasher{}
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create user cache, cause %w", err)
	}
	return &Cached{backend: backend, cache: cache}, nil
}

func (c *Cached) FindByUsername(ctx context.Context, username string) (User, error) {
	buf, err := c.cache.Get(username)
	if err == nil {
		if u, ok := decodeEntry(username, buf); ok {
			return u, nil
		}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return User{}, fmt.Errorf("unable to read user cache, cause %w", err)
	}
	u, err := c.backend.FindByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	c.remember(u)
	return u, nil
}

func (c *Cached) Insert(ctx context.Context, username, passwordHash string) (User, error) {
	u, err := c.backend.Insert(ctx, username, passwordHash)
	if err != nil {
		return User{}, err
	}
	c.remember(u)
	return u, nil
}

// Close releases the cache and, when possible, the wrapped backend.
func (c *Cached) Close() error {
	err := c.cache.Close()
	if closer, ok := c.backend.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			return cerr
		}
	}
	return err
}

func (c *Cached) remember(u User) {
	// a failed Set only costs a backend round trip later
	_ = c.cache.Set(u.Username, encodeEntry(u))
}

func encodeEntry(u User) []byte {
	buf := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(u.PasswordHash)), uint64(u.ID))
	return append(buf, u.PasswordHash...)
}

func decodeEntry(username string, buf []byte) (User, bool) {
	if len(buf) <= 8 {
		return User{}, false
	}
	return User{
		ID:           int64(binary.BigEndian.Uint64(buf[:8])),
		Username:     username,
		PasswordHash: string(buf[8:]),
	}, true
}
