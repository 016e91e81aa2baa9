package cmdflags

import (
	"time"

	"github.com/andrebq/authbox/credential"
	"github.com/andrebq/authbox/signing"
	"github.com/urfave/cli/v2"
)

func Database(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "authbox-data/users.db"
	}
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db", "d"},
		Usage:       "Path to a SQLite database or a postgres:// URL",
		EnvVars:     []string{"AUTHBOX_DATABASE", "DATABASE_URL"},
		Destination: out,
		Value:       *out,
	}
}

func SigningKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = signing.DefaultEnvVar
	}
	return &cli.StringFlag{
		Name:        "signing-key-envvar-name",
		Usage:       "Name of the environment variable that holds the base64 signing key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}

func LogFormat(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "json"
	}
	return &cli.StringFlag{
		Name:        "log-format",
		Usage:       "Either json or console",
		EnvVars:     []string{"AUTHBOX_LOG_FORMAT"},
		Value:       *out,
		Destination: out,
	}
}

// Argon2 returns the flags controlling the password hashing cost, starting
// from the values already in out.
func Argon2(out *credential.Params) []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{
			Name:    "argon2-memory-kib",
			Usage:   "Memory used by each password hash, in KiB",
			EnvVars: []string{"AUTHBOX_ARGON2_MEMORY_KIB"},
			Value:   uint(out.MemoryKiB),
			Action: func(_ *cli.Context, v uint) error {
				out.MemoryKiB = uint32(v)
				return nil
			},
		},
		&cli.UintFlag{
			Name:    "argon2-iterations",
			Usage:   "Number of passes over memory for each password hash",
			EnvVars: []string{"AUTHBOX_ARGON2_ITERATIONS"},
			Value:   uint(out.Iterations),
			Action: func(_ *cli.Context, v uint) error {
				out.Iterations = uint32(v)
				return nil
			},
		},
		&cli.UintFlag{
			Name:    "argon2-parallelism",
			Usage:   "Number of lanes used by each password hash (1-255)",
			EnvVars: []string{"AUTHBOX_ARGON2_PARALLELISM"},
			Value:   uint(out.Parallelism),
			Action: func(_ *cli.Context, v uint) error {
				if v == 0 || v > 255 {
					return cli.Exit("argon2-parallelism must be between 1 and 255", 1)
				}
				out.Parallelism = uint8(v)
				return nil
			},
		},
	}
}

func SessionTTL(out *time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:        "session-ttl",
		Usage:       "Lifetime of session cookies, zero keeps sessions until the browser is closed",
		EnvVars:     []string{"AUTHBOX_SESSION_TTL"},
		Value:       *out,
		Destination: out,
	}
}
