package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gpr/internal/scape"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "gpr.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "population":
		return runPopulation(ctx, args[1:])
	case "genomes":
		return runGenomes(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "scapes":
		for _, name := range scape.Names() {
			fmt.Println(name)
		}
		return nil
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gprctl <run|runs|history|diagnostics|top|show|population|genomes|export|scapes> [flags]", msg)
}

// storeFlags are shared by every command that opens a client.
type storeFlags struct {
	kind      *string
	dbPath    *string
	artifacts *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:      fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDB, "sqlite database path"),
		artifacts: fs.String("artifacts", artifactsDir, "run artifacts directory"),
	}
}

// runSelector is the -run-id / -latest pair used by the query commands.
type runSelector struct {
	runID  *string
	latest *bool
}

func addRunSelector(fs *flag.FlagSet, what string) runSelector {
	return runSelector{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, fmt.Sprintf("show %s for the most recent run from run index", what)),
	}
}

func (s runSelector) check(command string) error {
	if *s.runID != "" && *s.latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *s.runID == "" && !*s.latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
