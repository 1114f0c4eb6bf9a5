package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"aktieskat/internal/config"
	"aktieskat/internal/database"
	"aktieskat/internal/fxrate"
	"aktieskat/internal/render"
	"aktieskat/internal/server"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	env   = flag.String("env", "cli", "logger environment (cli, development, production, test)")
	width = flag.Int("width", 100, "word wrap width of the rendered output")
	raw   = flag.Bool("raw", false, "print markdown instead of rendering it")
)

var reportCommands = []subcommands.Command{
	&gainsCmd{},
	&dividendsCmd{},
	&positionsCmd{},
	&taxCmd{},
}

// app holds the opened database and the services built on it.
type app struct {
	cfg *config.Config
	db  *database.Manager
	svc server.Services
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database configuration: %w", err)
	}

	db, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	provider := fxrate.NewFrankfurterProvider(&http.Client{Timeout: cfg.FXRequestTimeout}, cfg.FXBaseURL)
	return &app{cfg: cfg, db: db, svc: server.NewServices(db.DB(), cfg, provider)}, nil
}

func (a *app) Close() { a.db.Close() }

// withApp opens the application, runs fn and maps its error to an exit status.
func withApp(fn func(a *app) error) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printMarkdown(md string) {
	if *raw {
		fmt.Print(md)
		return
	}
	fmt.Print(render.Terminal(md, *width))
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// parseAmount parses a non-negative decimal flag. An empty string yields nil.
func parseAmount(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("-%s must be a non-negative number, got %q", name, s)
	}
	return &d, nil
}
