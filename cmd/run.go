package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"ytrunner/internal/app"
	"ytrunner/pkg/config"
)

var (
	runSchedule  string
	runImmediate bool
)

var runCmd = &cobra.Command{
	Use:   "run [account...]",
	Short: "Cron mode: run every account on a schedule",
	Long: `Run upload cycles on a cron schedule until interrupted. Without account names
every configured account runs. A cycle that is still running when the next one
is due is skipped.`,
	RunE: runCron,
}

func init() {
	runCmd.Flags().StringVarP(&runSchedule, "schedule", "s", "", `Cron spec, e.g. "0 9 * * *" or "@every 6h" (default from config)`)
	runCmd.Flags().BoolVar(&runImmediate, "now", true, "Run one cycle immediately on start")
	rootCmd.AddCommand(runCmd)
}

func runCron(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	service, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	accounts, err := service.Select(args, len(args) == 0)
	if err != nil {
		return err
	}

	spec := runSchedule
	if spec == "" {
		spec = cfg.Schedule.Cron
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	cycle := func() {
		summaries, err := service.RunAccounts(ctx, accounts)
		if err != nil {
			slog.Warn("Cycle finished with errors", "error", err)
		}
		slog.Info("Cycle finished", "accounts", len(accounts), "runs", len(summaries))
	}

	if _, err := c.AddFunc(spec, cycle); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	slog.Info("Starting cron mode", "schedule", spec, "accounts", len(accounts))

	if runImmediate {
		cycle()
	}

	c.Start()
	<-ctx.Done()

	slog.Info("Shutting down...")
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
