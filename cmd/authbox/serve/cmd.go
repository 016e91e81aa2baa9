package serve

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/andrebq/authbox/auth"
	"github.com/andrebq/authbox/auth/api"
	"github.com/andrebq/authbox/credential"
	"github.com/andrebq/authbox/internal/cmdflags"
	"github.com/andrebq/authbox/internal/httpserver"
	"github.com/andrebq/authbox/internal/logutil"
	"github.com/andrebq/authbox/session"
	"github.com/andrebq/authbox/signing"
	"github.com/andrebq/authbox/userstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:8000"
	var database string
	var keyEnvVar string
	ttl := session.DefaultTTL
	cookieName := session.DefaultCookieName
	var insecureCookie bool
	var upstream string
	cacheLifetime := 10 * time.Minute
	params := credential.DefaultParams()
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bind",
			Usage:       "Address to bind for incoming requests",
			EnvVars:     []string{"AUTHBOX_BIND"},
			Value:       bindAddr,
			Destination: &bindAddr,
		},
		cmdflags.Database(&database),
		cmdflags.SigningKeyEnvVar(&keyEnvVar),
		cmdflags.SessionTTL(&ttl),
		&cli.StringFlag{
			Name:        "cookie-name",
			Usage:       "Name of the session cookie",
			EnvVars:     []string{"AUTHBOX_COOKIE_NAME"},
			Value:       cookieName,
			Destination: &cookieName,
		},
		&cli.BoolFlag{
			Name:        "insecure-cookie",
			Usage:       "Send session cookies without the Secure flag (plain HTTP development only)",
			EnvVars:     []string{"AUTHBOX_INSECURE_COOKIE"},
			Destination: &insecureCookie,
		},
		&cli.StringFlag{
			Name:        "upstream",
			Usage:       "Optional URL that receives every other request once the session is verified",
			EnvVars:     []string{"AUTHBOX_UPSTREAM"},
			Destination: &upstream,
		},
		&cli.DurationFlag{
			Name:        "user-cache-lifetime",
			Usage:       "How long user rows stay in memory, zero disables the cache",
			EnvVars:     []string{"AUTHBOX_USER_CACHE_LIFETIME"},
			Value:       cacheLifetime,
			Destination: &cacheLifetime,
		},
	}
	flags = append(flags, cmdflags.Argon2(&params)...)
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the authentication HTTP server",
		Flags: flags,
		Action: func(ctx *cli.Context) error {
			var handlerOpts []api.Option
			if len(upstream) > 0 {
				upstreamURL, err := url.Parse(upstream)
				if err != nil {
					return err
				}
				if upstreamURL.Scheme == "" || upstreamURL.Host == "" {
					return fmt.Errorf("upstream %q must be an absolute URL", upstream)
				}
				handlerOpts = append(handlerOpts, api.WithUpstream(upstreamURL))
			}
			// no key, no traffic
			key, err := signing.FromEnv(keyEnvVar, os.Getenv, os.Setenv)
			if err != nil {
				return err
			}
			hasher, err := credential.New(params)
			if err != nil {
				return err
			}
			var backend userstore.ClosableBackend
			backend, err = userstore.Open(ctx.Context, database)
			if err != nil {
				return err
			}
			if cacheLifetime > 0 {
				cached, err := userstore.NewCached(ctx.Context, backend, cacheLifetime, 0)
				if err != nil {
					backend.Close()
					return err
				}
				backend = cached
			}
			defer backend.Close()

			codec := session.NewCodec(key,
				session.WithTTL(ttl),
				session.WithCookieName(cookieName),
				session.AllowHTTPCookie(insecureCookie))
			svc := auth.New(userstore.New(backend, hasher), codec)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			handler, err := api.AsHandler(ctx.Context, svc, reg, handlerOpts...)
			if err != nil {
				return err
			}
			if insecureCookie {
				log.Warn().Msg("Session cookies will be sent without the Secure flag")
			}
			serverCtx := logutil.WithLogger(ctx.Context, log.Logger)
			return httpserver.Serve(serverCtx, bindAddr, httpserver.WithRequestLog(handler))
		},
	}
}
