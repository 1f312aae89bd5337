package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"ytrunner/internal/progress"
)

var (
	resetYes   bool
	resetForce bool
)

var resetCmd = &cobra.Command{
	Use:   "reset <account>",
	Short: "Clear the progress of an account",
	Long: `Remove the stored cursors, upload fingerprints and last run of an account.
The next run starts again at the first video.

Use --force to remove a lock left behind by a run that did not exit cleanly.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Remove the account lock before resetting")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	acct, err := service.Registry().Find(args[0])
	if err != nil {
		return err
	}

	if !resetYes {
		var confirm bool
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("Reset progress for %s?", acct.DisplayName())).
			Description("Videos already uploaded may be uploaded again.").
			Value(&confirm).
			Run(); err != nil {
			return err
		}
		if !confirm {
			fmt.Println(infoStyle.Render("Kept existing progress"))
			return nil
		}
	}

	stateDir := service.Config().State.Dir
	if resetForce {
		if err := progress.BreakLock(stateDir, acct.ID); err != nil {
			return err
		}
		fmt.Println(warnStyle.Render("Removed lock for " + acct.ID))
	}

	lock, err := progress.AcquireLock(stateDir, acct.ID)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	if err := service.Store().Reset(ctx, acct.ID); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ Reset progress for " + acct.ID))
	return nil
}
