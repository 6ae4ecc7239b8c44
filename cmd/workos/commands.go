package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	workos "github.com/madhatter5501/WorkOS"
	"github.com/madhatter5501/WorkOS/internal/web"
	"github.com/madhatter5501/WorkOS/kanban"
	"github.com/madhatter5501/WorkOS/report"
	"github.com/madhatter5501/WorkOS/strategy"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workspace with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, logger, err := flags.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if addr == "" {
				addr = ws.Config().Listen
			}
			server := web.NewServer(ws, logger)

			errCh := make(chan error, 2)
			go func() { errCh <- ws.Run(ctx) }()
			go func() {
				if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					logger.Error("Workspace stopped", "error", err)
				}
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store, AI, and board status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := flags.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			out := cmd.OutOrStdout()
			cfg := ws.Config()
			fmt.Fprintln(out, "=== WorkOS Status ===")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Store:  %s %s\n", cfg.Store.Driver, cfg.Store.DSN)
			fmt.Fprintf(out, "Bus:    %s\n", cfg.Bus.Driver)
			fmt.Fprintf(out, "AI:     %s (%s)\n", keyStatus(ws.Analyst().Available()), cfg.AI.Model)
			if usage := ws.Analyst().Usage(); usage.TotalRequests > 0 {
				fmt.Fprintf(out, "Usage:  %d requests, %d failed, %d tokens in, %d out\n",
					usage.TotalRequests, usage.FailedRequests, usage.InputTokens, usage.OutputTokens)
			}
			if u, err := ws.CurrentUser(); err == nil {
				fmt.Fprintf(out, "User:   %s (%s)\n", u.Name, u.SystemRole)
			} else {
				fmt.Fprintln(out, "User:   not logged in")
			}
			fmt.Fprintln(out)

			tasks := ws.Board().Tasks()
			counts := map[kanban.TaskStatus]int{}
			for _, t := range tasks {
				counts[t.Status]++
			}
			fmt.Fprintln(out, "Board:")
			for _, s := range kanban.Columns() {
				fmt.Fprintf(out, "  %-10s %d\n", s, counts[s])
			}
			fmt.Fprintf(out, "  %-10s %d\n", "Total", len(tasks))
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Meetings: %d\n", len(ws.Calendar().Meetings()))
			fmt.Fprintf(out, "Reports:  %d\n", len(ws.Pulse().State().History))
			return nil
		},
	}
}

func boardCmd(flags *globalFlags) *cobra.Command {
	var sector string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the board lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := flags.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			out := cmd.OutOrStdout()
			for _, col := range ws.Board().Columns(kanban.Sector(sector)) {
				fmt.Fprintf(out, "%s (%d)\n", col.Status, len(col.Tasks))
				for _, t := range col.Tasks {
					fmt.Fprintf(out, "  [%s] %s - %s, %s (%s)\n", t.ID, t.Title, t.Assignee.Name, t.Deadline, t.Sector)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sector, "sector", "s", string(kanban.SectorGeneral), "Sector filter")
	return cmd
}

func reportCmd(flags *globalFlags) *cobra.Command {
	var (
		format  string
		history int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an AI project report, or show a past one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, _, err := flags.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			if history < 0 {
				if _, err := ws.Pulse().Generate(ctx); err != nil {
					return err
				}
				history = 0
			}
			item, err := ws.Pulse().Select(history)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), item, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format (markdown, html)")
	cmd.Flags().IntVar(&history, "history", -1, "Show the saved report at this index instead of generating")
	return cmd
}

func writeReport(out io.Writer, item kanban.AnalysisHistoryItem, format string) error {
	switch format {
	case "markdown", "md":
		_, err := io.WriteString(out, report.Markdown(item))
		return err
	case "html":
		html, err := report.RenderHTML(item)
		if err != nil {
			return err
		}
		_, err = out.Write(html)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func evaluateCmd(flags *globalFlags) *cobra.Command {
	var (
		email    string
		password string
		filter   string
	)
	cmd := &cobra.Command{
		Use:   "evaluate [task-id]",
		Short: "Score tasks for impact and effort",
		Long:  "Scores one task, or every unscored task when no id is given, then prints the strategy view.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, _, err := flags.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			actor, err := actingUser(ctx, ws, email, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if _, err := ws.Planner().EvaluateOne(ctx, actor, args[0]); err != nil {
					return err
				}
			} else {
				n, err := ws.Planner().EvaluateAll(ctx, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Evaluated %d tasks\n\n", n)
			}

			for _, t := range ws.Planner().View(strategy.Filter(filter)) {
				effort := "-"
				if t.EffortScore != nil {
					effort = fmt.Sprintf("%.0f", *t.EffortScore)
				}
				fmt.Fprintf(out, "%3.0f  effort %-2s  %-12s %s\n", t.Impact(), effort, t.StrategicTheme, t.Title)
				if t.AIRationale != "" {
					fmt.Fprintf(out, "     %s\n", strings.TrimSpace(t.AIRationale))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Log in as this user")
	cmd.Flags().StringVar(&password, "password", "", "Password for --email")
	cmd.Flags().StringVar(&filter, "filter", string(strategy.FilterAll), "View filter (all, active, high_impact)")
	return cmd
}

// actingUser logs in with the given credentials, or falls back to the saved session.
func actingUser(ctx context.Context, ws *workos.Workspace, email, password string) (kanban.User, error) {
	if email != "" {
		return ws.Auth().Login(ctx, email, password)
	}
	u, err := ws.CurrentUser()
	if err != nil {
		return kanban.User{}, fmt.Errorf("%w: pass --email and --password", err)
	}
	return u, nil
}

func keyStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "missing key"
}
