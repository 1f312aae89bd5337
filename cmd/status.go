package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ytrunner/internal/account"
	"ytrunner/internal/app"
	"ytrunner/internal/engine"
	"ytrunner/internal/progress"
)

var errNoAccounts = errors.New("no accounts configured; run `ytrunner setup` to add one")

var (
	statusJSON     bool
	statusChannels bool
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var statusCmd = &cobra.Command{
	Use:   "status [account...]",
	Short: "Show progress and the last run of each account",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
	statusCmd.Flags().BoolVar(&statusChannels, "channels", false, "Look up the YouTube channel of each account")
	rootCmd.AddCommand(statusCmd)
}

type accountStatus struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Channel      string           `json:"channel,omitempty"`
	Cursors      progress.Cursors `json:"cursors"`
	Uploaded     int              `json:"uploaded"`
	LastRun      *progress.Run    `json:"last_run,omitempty"`
	LastVideoURL string           `json:"last_video_url,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	if len(service.Registry().Accounts()) == 0 {
		return errNoAccounts
	}

	accounts, err := service.Select(args, len(args) == 0)
	if err != nil {
		return err
	}

	statuses, err := collectStatus(ctx, service, accounts)
	if err != nil {
		return err
	}

	if statusChannels {
		lookupChannels(ctx, service, accounts, statuses)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	for _, st := range statuses {
		printStatus(st)
	}
	return nil
}

func collectStatus(ctx context.Context, service *app.Service, accounts []account.Account) ([]*accountStatus, error) {
	statuses := make([]*accountStatus, 0, len(accounts))
	for i := range accounts {
		acct := &accounts[i]
		rec, err := service.Store().Load(ctx, acct.ID)
		if err != nil {
			return nil, err
		}

		st := &accountStatus{
			ID:       acct.ID,
			Name:     acct.DisplayName(),
			Cursors:  rec.Cursors,
			Uploaded: len(rec.Fingerprints),
			LastRun:  rec.LastRun,
		}
		if rec.LastRun != nil && rec.LastRun.VideoID != "" {
			st.LastVideoURL = engine.VideoURL(rec.LastRun.VideoID)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func lookupChannels(ctx context.Context, service *app.Service, accounts []account.Account, statuses []*accountStatus) {
	lookup := func() error {
		for i := range accounts {
			client, err := service.Provider().YouTube(ctx, &accounts[i])
			if err != nil {
				statuses[i].Channel = "(" + err.Error() + ")"
				continue
			}
			title, err := client.ChannelTitle(ctx)
			if err != nil {
				statuses[i].Channel = "(" + err.Error() + ")"
				continue
			}
			statuses[i].Channel = title
		}
		return nil
	}

	// Keep stdout clean for --json.
	if statusJSON {
		_ = lookup()
		return
	}
	_ = runWithSpinner("Looking up channels", lookup)
}

func printStatus(st *accountStatus) {
	header := st.ID
	if st.Name != st.ID {
		header += " (" + st.Name + ")"
	}
	fmt.Println(statusHeaderStyle.Render(header))

	if st.Channel != "" {
		fmt.Println("  channel:   " + st.Channel)
	}
	c := st.Cursors
	fmt.Printf("  cursors:   video=%d title=%d description=%d thumbnail=%d tags=%d\n",
		c.Video, c.Title, c.Description, c.Thumbnail, c.Tags)
	fmt.Printf("  uploaded:  %d\n", st.Uploaded)

	if st.LastRun == nil {
		fmt.Println(statusMutedStyle.Render("  last run:  never"))
		fmt.Println()
		return
	}

	style := authSuccessStyle
	switch engine.State(st.LastRun.Outcome) {
	case engine.PartialSuccess, engine.NeedsAuth:
		style = warnStyle
	case engine.Aborted:
		style = authErrorStyle
	}
	line := fmt.Sprintf("  last run:  %s %s", st.LastRun.At.Local().Format(time.DateTime), st.LastRun.Outcome)
	if st.LastRun.Message != "" {
		line += " (" + st.LastRun.Message + ")"
	}
	fmt.Println(style.Render(line))
	if st.LastVideoURL != "" {
		fmt.Println("  video:     " + st.LastVideoURL)
	}
	fmt.Println()
}
