package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/authbox/cmd/authbox/keygen"
	"github.com/andrebq/authbox/cmd/authbox/serve"
	"github.com/andrebq/authbox/cmd/authbox/users"
	"github.com/andrebq/authbox/internal/cmdflags"
	"github.com/andrebq/authbox/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var logFormat string
	app := &cli.App{
		Name:  "authbox",
		Usage: "Password login and signed session cookies",
		Flags: []cli.Flag{
			cmdflags.LogFormat(&logFormat),
		},
		Before: func(ctx *cli.Context) error {
			logger, err := logutil.New(logFormat, os.Stderr)
			if err != nil {
				return err
			}
			log.Logger = logger
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			keygen.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
