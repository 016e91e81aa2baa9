package keygen

import (
	"fmt"

	"github.com/andrebq/authbox/signing"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Print a new random signing key (base64), store it in the signing key environment variable",
		Action: func(ctx *cli.Context) error {
			key, err := signing.Generate(nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, key.Encode())
			return err
		},
	}
}
