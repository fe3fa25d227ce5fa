package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/app"
	"github.com/spec-kit/hostel-dispatch/internal/config"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/escalation"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/service"
	"github.com/spec-kit/hostel-dispatch/internal/worker"
)

var thresholdPriorities = []domain.TicketPriority{
	domain.TicketPriorityEmergency,
	domain.TicketPriorityHigh,
	domain.TicketPriorityMedium,
	domain.TicketPriorityLow,
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Operate the hostel ticket dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newThresholdsCmd(), newScanCmd(), newTokenCmd())
	return root
}

func newThresholdsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Print idle hours before each escalation level, per priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printThresholds(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func newScanCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one escalation scan against the configured database",
		Example: `  # Show what would be escalated
  dispatchctl scan --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), !dryRun, func(ctx context.Context, c *app.Container) error {
				return runScan(ctx, cmd.OutOrStdout(), c.Escalations, c.Notifications, c.Logger, time.Now().UTC(), dryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute actions without writing")
	return cmd
}

// runScan registers notification handlers before an applying scan so every
// escalation it writes reaches the next tier.
func runScan(ctx context.Context, w io.Writer, scanner worker.Scanner, notifications *service.NotificationService, logger *zap.Logger, now time.Time, dryRun bool) error {
	if !dryRun {
		worker.StartNotificationWorker(notifications, logger)
	}
	report, err := scanner.RunScan(ctx, now, dryRun)
	if err != nil {
		return err
	}
	return writeJSON(w, dto.NewScanReportResponse(report))
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), false, func(ctx context.Context, c *app.Container) error {
				issued, err := c.Auth.IssueToken(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"user_id":    issued.User.ID,
					"role":       issued.User.Role,
					"token":      issued.Token,
					"expires_at": issued.ExpiresAt,
				})
			})
		},
	}
}

func printThresholds(w io.Writer, format string) error {
	switch format {
	case "json":
		rows := make([]map[string]any, 0, int(domain.MaxEscalationLevel))
		for level := domain.LevelStaffMember; level <= domain.MaxEscalationLevel; level++ {
			hours := make(map[string]int, len(thresholdPriorities))
			for _, p := range thresholdPriorities {
				hours[string(p)] = escalation.ThresholdHours(level, p)
			}
			rows = append(rows, map[string]any{
				"level":              int(level),
				"name":               level.String(),
				"hours":              hours,
				"notification_roles": escalation.NotificationRoles(level),
			})
		}
		return writeJSON(w, rows)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		header := []string{"LEVEL", "NAME"}
		for _, p := range thresholdPriorities {
			header = append(header, string(p))
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for level := domain.LevelStaffMember; level <= domain.MaxEscalationLevel; level++ {
			row := []string{fmt.Sprint(int(level)), level.String()}
			for _, p := range thresholdPriorities {
				row = append(row, fmt.Sprintf("%dh", escalation.ThresholdHours(level, p)))
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// withContainer loads config, builds the application graph and runs fn with
// a context cancelled on SIGINT or SIGTERM. Notifications stay as configured
// only when notify is set.
func withContainer(parent context.Context, notify bool, fn func(context.Context, *app.Container) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Migrations are left to the server.
	cfg.Postgres.RunMigrations = false
	if !notify {
		cfg.Notification.Enabled = false
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application", zap.Error(err))
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
