package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"aktieskat/internal/pagination"
	"aktieskat/internal/render"
	"aktieskat/internal/services"
)

type auditCmd struct {
	actor  string
	action string
	limit  int
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "display recent ledger and settings changes" }
func (*auditCmd) Usage() string {
	return `skat audit [-actor <name>] [-action <action>] [-n <count>]

  Lists audit entries, newest first.
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.actor, "actor", "", "only entries by this actor")
	f.StringVar(&c.action, "action", "", "only entries with this action, e.g. SET_EXCHANGE_RATE")
	f.IntVar(&c.limit, "n", 20, "number of entries to show (at most 100)")
}

func (c *auditCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit < 1 || c.limit > pagination.MaxPageSize {
		fmt.Fprintf(os.Stderr, "Error: -n must be between 1 and %d\n", pagination.MaxPageSize)
		return subcommands.ExitUsageError
	}

	return withApp(func(a *app) error {
		page, err := a.svc.Audit.List(ctx, pagination.PageRequest{Page: 1, PageSize: c.limit}, services.AuditFilter{
			Actor:  c.actor,
			Action: c.action,
		})
		if err != nil {
			return err
		}
		printMarkdown(render.Audit(page.Data, page.TotalItems))
		return nil
	})
}
