package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/andrebq/authbox/credential"
	"github.com/andrebq/authbox/session"
	"github.com/andrebq/authbox/signing"
	"github.com/andrebq/authbox/userstore"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// CheapParams keeps Argon2 fast enough for tests, never use it elsewhere.
func CheapParams() credential.Params {
	return credential.Params{
		MemoryKiB:   64,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Key returns a deterministic signing key filled with b.
func Key(t TestLog, b byte) *signing.Key {
	key, err := signing.New(bytes.Repeat([]byte{b}, signing.MinKeySize))
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// AcquireStore opens a user store backed by a SQLite database inside a
// temporary directory, cleanup removes everything.
func AcquireStore(ctx context.Context, t TestLog, name string) (*userstore.Store, func()) {
	dir, err := os.MkdirTemp("", "authbox-tests")
	if err != nil {
		t.Fatal(err)
	}
	db, err := userstore.OpenSQLite(ctx, filepath.Join(dir, name, "users.db"))
	if err != nil {
		t.Fatal(err)
	}
	hasher, err := credential.New(CheapParams())
	if err != nil {
		t.Fatal(err)
	}
	return userstore.New(db, hasher), func() {
		err := db.Close()
		if err != nil {
			t.Log("unable to close database", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquireCodec builds a session codec using Key(t, 1) and the given clock.
func AcquireCodec(t TestLog, now func() time.Time, opts ...session.CodecOption) *session.Codec {
	opts = append([]session.CodecOption{session.WithClock(now)}, opts...)
	return session.NewCodec(Key(t, 1), opts...)
}
