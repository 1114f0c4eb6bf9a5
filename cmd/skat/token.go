package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"aktieskat/internal/config"
	"aktieskat/internal/middleware"
)

type tokenCmd struct {
	subject string
	ttl     time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an access token for the API" }
func (*tokenCmd) Usage() string {
	return `skat token -subject <name> [-ttl <duration>]

  Signs an access token with JWT_SECRET and prints it.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "subject", "", "holder the token is issued to")
	f.DurationVar(&c.ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRES_IN)")
}

func (c *tokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ttl := c.ttl
	if ttl <= 0 {
		ttl = cfg.JWTExpirationDur
	}

	token, err := middleware.GenerateAccessToken([]byte(cfg.JWTSecret), c.subject, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}
