package users

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/authbox/credential"
	"github.com/andrebq/authbox/internal/cmdflags"
	"github.com/andrebq/authbox/userstore"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func Cmd() *cli.Command {
	var backend userstore.ClosableBackend
	var database string
	params := credential.DefaultParams()
	flags := []cli.Flag{cmdflags.Database(&database)}
	flags = append(flags, cmdflags.Argon2(&params)...)
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the users stored in a database",
		Flags: flags,
		Before: func(ctx *cli.Context) error {
			var err error
			backend, err = userstore.Open(ctx.Context, database)
			return err
		},
		After: func(ctx *cli.Context) error {
			if backend == nil {
				return nil
			}
			return backend.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&backend, &params),
		},
	}
}

func registerCmd(backend *userstore.ClosableBackend, params *credential.Params) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from the terminal or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Name of the user to register",
				Destination: &username,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword()
			if err != nil {
				return err
			}
			hasher, err := credential.New(*params)
			if err != nil {
				return err
			}
			u, err := userstore.New(*backend, hasher).Insert(ctx.Context, username, password)
			if err != nil {
				return err
			}
			log.Info().Int64("user", u.ID).Str("username", u.Username).Msg("User registered")
			return nil
		},
	}
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		buf, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		if sc.Err() != nil {
			return "", sc.Err()
		}
		return "", errors.New("missing password from stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r\n")
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}
