// Command skat prints the Danish tax reports for the ledger in the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"aktieskat/internal/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range reportCommands {
		commander.Register(c, "reports")
	}
	commander.Register(&ratesCmd{}, "rates")
	commander.Register(&auditCmd{}, "audit")
	commander.Register(&tokenCmd{}, "auth")

	flag.Parse()

	logger.Init(*env)
	defer logger.Sync()

	os.Exit(int(commander.Execute(context.Background())))
}
