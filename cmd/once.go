package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytrunner/internal/app"
	"ytrunner/internal/engine"
	"ytrunner/pkg/config"
)

var onceAll bool

var onceCmd = &cobra.Command{
	Use:   "once [account...]",
	Short: "Upload the next video for the given accounts",
	Long: `Run one upload cycle for each named account, or for every account with --all.
Accounts run one after another.`,
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().BoolVarP(&onceAll, "all", "a", false, "Run every configured account")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	service, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	accounts, err := service.Select(args, onceAll)
	if err != nil {
		return err
	}

	summaries, runErr := service.RunAccounts(ctx, accounts)
	for _, s := range summaries {
		printSummary(s)
	}
	if runErr != nil {
		return runErr
	}

	failed := 0
	for _, s := range summaries {
		if s.State == engine.Aborted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d account(s) aborted", failed, len(summaries))
	}
	return nil
}

func printSummary(s *engine.Summary) {
	style := authSuccessStyle
	switch s.State {
	case engine.PartialSuccess, engine.NeedsAuth:
		style = warnStyle
	case engine.Aborted:
		style = authErrorStyle
	}

	fmt.Println(style.Render(s.String()))
}
