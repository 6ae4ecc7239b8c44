// WorkOS is the team workspace: a role-gated task board, calendar, chat, and
// AI project reports over a shared store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	workos "github.com/madhatter5501/WorkOS"
	"github.com/madhatter5501/WorkOS/internal/broadcast"
	"github.com/madhatter5501/WorkOS/internal/db"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	storeDrv   string
	storeDSN   string
	busDrv     string
	busDSN     string
	ephemeral  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "workos",
		Short:         "WorkOS - team workspace with AI project reports",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file (default workos.toml if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.storeDrv, "store", "", "Store driver (sqlite, file, redis, postgres, memory)")
	pf.StringVar(&flags.storeDSN, "store-dsn", "", "Store path or URL")
	pf.StringVar(&flags.busDrv, "bus", "", "Bus driver (local, redis, postgres)")
	pf.StringVar(&flags.busDSN, "bus-dsn", "", "Bus URL")
	pf.BoolVar(&flags.ephemeral, "ephemeral", false, "Keep everything in memory")

	root.AddCommand(serveCmd(&flags))
	root.AddCommand(statusCmd(&flags))
	root.AddCommand(boardCmd(&flags))
	root.AddCommand(reportCmd(&flags))
	root.AddCommand(evaluateCmd(&flags))
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "workos %s (commit: %s, built: %s)\n", version, gitCommit, buildTime)
		},
	}
}

// loadConfig layers the config file, the environment, and command-line flags.
func (f *globalFlags) loadConfig() (workos.Config, error) {
	cfg, err := workos.LoadConfig(f.configPath)
	if err != nil {
		return workos.Config{}, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.storeDrv != "" {
		cfg.Store.Driver = db.Driver(f.storeDrv)
	}
	if f.storeDSN != "" {
		cfg.Store.DSN = f.storeDSN
	}
	if f.busDrv != "" {
		cfg.Bus.Driver = broadcast.Driver(f.busDrv)
	}
	if f.busDSN != "" {
		cfg.Bus.DSN = f.busDSN
	}
	if f.ephemeral {
		cfg.Store = workos.StoreConfig{Driver: db.DriverMemory}
		cfg.Bus = workos.BusConfig{Driver: broadcast.DriverLocal}
	}
	return cfg, cfg.Validate()
}

// newLogger returns a slog logger writing colored console output.
func newLogger(level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
		Prefix:          "workos",
	})
	return slog.New(handler), nil
}

// openWorkspace loads the configuration and opens a workspace.
func (f *globalFlags) openWorkspace(ctx context.Context) (*workos.Workspace, *slog.Logger, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	ws, err := workos.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return ws, logger, nil
}
