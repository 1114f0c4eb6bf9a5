package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"aktieskat/internal/render"
)

func lastYear() int { return time.Now().Year() - 1 }

type gainsCmd struct {
	year int
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "display the capital gains report for a tax year" }
func (*gainsCmd) Usage() string {
	return `skat gains [-year <year>]

  Lists every disposal of the year with its DKK proceeds, cost basis and gain.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", lastYear(), "tax year")
}

func (c *gainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(func(a *app) error {
		report, err := a.svc.Gains.Generate(ctx, c.year)
		if err != nil {
			return err
		}
		printMarkdown(render.CapitalGains(report))
		return nil
	})
}

type dividendsCmd struct {
	year       int
	usPerson   bool
	irsTaxPaid string
}

func (*dividendsCmd) Name() string     { return "dividends" }
func (*dividendsCmd) Synopsis() string { return "display the dividend tax report for a tax year" }
func (*dividendsCmd) Usage() string {
	return `skat dividends [-year <year>] [-us-person] [-irs-tax-paid <dkk>]

  Converts the year's dividends and US withholding to DKK and computes the
  Danish share income tax. With -irs-tax-paid the foreign tax credit is applied.
`
}

func (c *dividendsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", lastYear(), "tax year")
	f.BoolVar(&c.usPerson, "us-person", false, "the holder files a US return and claims the credit there")
	f.StringVar(&c.irsTaxPaid, "irs-tax-paid", "", "US tax paid on the dividends, in DKK")
}

func (c *dividendsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	irsTaxPaid, err := parseAmount("irs-tax-paid", c.irsTaxPaid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	return withApp(func(a *app) error {
		report, err := a.svc.Dividends.Generate(ctx, c.year, c.usPerson, irsTaxPaid)
		if err != nil {
			return err
		}
		printMarkdown(render.Dividends(report))
		return nil
	})
}

type positionsCmd struct{}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "display open positions and their DKK cost basis" }
func (*positionsCmd) Usage() string {
	return `skat positions

  Lists every ticker with open shares under its configured cost-basis method.
`
}

func (*positionsCmd) SetFlags(*flag.FlagSet) {}

func (*positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(func(a *app) error {
		positions, err := a.svc.Gains.GetPortfolioPositions(ctx)
		if err != nil {
			return err
		}
		printMarkdown(render.Positions(positions))
		return nil
	})
}
