package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
	"aktieskat/internal/render"
)

type ratesCmd struct {
	start string
	end   string
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "fetch and store USD/DKK rates for a date range" }
func (*ratesCmd) Usage() string {
	return `skat rates -start <YYYY-MM-DD> -end <YYYY-MM-DD>

  Fetches the missing daily rates in the range from the upstream provider,
  stores them and prints the stored rates.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "first date of the range")
	f.StringVar(&c.end, "end", "", "last date of the range")
}

func (c *ratesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := parseDay(c.start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -start: %v\n", err)
		return subcommands.ExitUsageError
	}
	end, err := parseDay(c.end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -end: %v\n", err)
		return subcommands.ExitUsageError
	}

	return withApp(func(a *app) error {
		stored, err := a.svc.Rates.PrefetchRange(ctx, start, end)
		if err != nil {
			return err
		}
		var rates []models.ExchangeRate
		req := pagination.PageRequest{Page: 1, PageSize: pagination.MaxPageSize}
		for {
			page, err := a.svc.Rates.ListRates(ctx, req, &start, &end)
			if err != nil {
				return err
			}
			rates = append(rates, page.Data...)
			if !page.HasNext() {
				break
			}
			req = req.Next()
		}
		printMarkdown(render.Rates(rates, stored))
		return nil
	})
}
