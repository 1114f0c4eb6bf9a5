package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"aktieskat/internal/render"
)

type taxCmd struct {
	year          int
	salary        string
	deductions    string
	municipalRate string
}

func (*taxCmd) Name() string     { return "tax" }
func (*taxCmd) Synopsis() string { return "compute the income tax for a year including equity income" }
func (*taxCmd) Usage() string {
	return `skat tax -salary <dkk> [-year <year>] [-deductions <dkk>] [-municipal-rate <rate>]

  Adds the year's RSU and ESPP grant values to the salary and computes the
  Danish income tax with the §7P reduction.
`
}

func (c *taxCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", lastYear(), "tax year")
	f.StringVar(&c.salary, "salary", "", "annual salary in DKK")
	f.StringVar(&c.deductions, "deductions", "0", "deductions in DKK")
	f.StringVar(&c.municipalRate, "municipal-rate", "", "municipal tax rate as a fraction, e.g. 0.25")
}

func (c *taxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	salary, err := parseAmount("salary", c.salary)
	if err == nil && salary == nil {
		err = fmt.Errorf("-salary is required")
	}
	var deductions, municipalRate *decimal.Decimal
	if err == nil {
		deductions, err = parseAmount("deductions", c.deductions)
	}
	if err == nil {
		municipalRate, err = parseAmount("municipal-rate", c.municipalRate)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if deductions == nil {
		deductions = &decimal.Zero
	}

	return withApp(func(a *app) error {
		r, err := a.svc.Tax.ComputeForYear(ctx, c.year, *salary, *deductions, municipalRate)
		if err != nil {
			return err
		}
		printMarkdown(render.Tax(r.Result, &r.Equity))
		return nil
	})
}
