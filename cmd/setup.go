package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ytrunner/internal/account"
	"ytrunner/internal/progress"
	"ytrunner/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for ytrunner",
	Long:  `Write config.yaml and .env, enable the YouTube API and add an account to accounts.yaml.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("ytrunner Setup"))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Writing config", writeConfig},
		{"Configuring environment", configureEnv},
		{"Adding account", func() error { return addAccount(cmd.Context()) }},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

func writeConfig() error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		fmt.Println(infoStyle.Render("Kept existing " + path))
		return nil
	}

	cfg := config.Default()
	if err := huh.NewSelect[string]().
		Title("Progress backend").
		Description("Where cursors and upload history are stored").
		Options(
			huh.NewOption("JSON files (human readable)", progress.BackendFile),
			huh.NewOption("Pebble (embedded key-value store)", progress.BackendPebble),
			huh.NewOption("SQLite", progress.BackendSQLite),
		).
		Value(&cfg.State.Backend).
		Run(); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return err
	}

	for _, dir := range []string{cfg.State.Dir, cfg.YouTube.TokensDir} {
		if err := os.MkdirAll(filepath.Join(filepath.Dir(path), dir), 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fmt.Println(successStyle.Render("✓ Created " + path))
	return nil
}

func configureEnv() error {
	env, err := godotenv.Read()
	if err != nil {
		env = make(map[string]string)
	}

	if env["YOUTUBE_CLIENT_ID"] != "" && env["YOUTUBE_CLIENT_SECRET"] != "" {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found YouTube credentials in .env").
			Description("Replace them?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	enableYouTubeAPI()

	if err := setupYouTubeOAuth(env); err != nil {
		return err
	}

	return writeEnvFile(env)
}

// enableYouTubeAPI turns on the APIs for the active gcloud project when the
// gcloud CLI is available.
func enableYouTubeAPI() {
	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found - enable the YouTube Data API in the console"))
		return
	}

	project := getActiveProject()
	if project == "" {
		fmt.Println(warnStyle.Render("No active gcloud project - enable the YouTube Data API in the console"))
		return
	}

	var enable bool
	if err := huh.NewConfirm().
		Title(fmt.Sprintf("Enable YouTube Data API on %s?", project)).
		Value(&enable).
		Run(); err != nil || !enable {
		return
	}

	if err := enableGCPAPIs(project); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}
}

func getActiveProject() string {
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"youtube.googleapis.com",
		"secretmanager.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func setupYouTubeOAuth(env map[string]string) error {
	fmt.Println(infoStyle.Render(`
To create OAuth credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "OAuth client ID"
3. Choose "Desktop app" as application type
4. Copy the Client ID and Client Secret
Leave both empty if every account brings its own client_secrets.
`))

	var clientID, clientSecret string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("YouTube Client ID").
				Value(&clientID),
			huh.NewInput().
				Title("YouTube Client Secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if clientID != "" {
		env["YOUTUBE_CLIENT_ID"] = clientID
		_ = os.Setenv("YOUTUBE_CLIENT_ID", clientID)
	}
	if clientSecret != "" {
		env["YOUTUBE_CLIENT_SECRET"] = clientSecret
		_ = os.Setenv("YOUTUBE_CLIENT_SECRET", clientSecret)
	}
	return nil
}

func writeEnvFile(env map[string]string) error {
	if len(env) == 0 {
		return nil
	}
	if err := godotenv.Write(env, ".env"); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}
	if err := os.Chmod(".env", 0600); err != nil {
		return fmt.Errorf("chmod .env: %w", err)
	}

	fmt.Println(successStyle.Render("✓ Wrote .env file"))
	return nil
}

func addAccount(ctx context.Context) error {
	var add bool
	if err := huh.NewConfirm().
		Title("Add an account now?").
		Value(&add).
		Run(); err != nil || !add {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	registry, err := account.Load(cfg.AccountsFile)
	if err != nil {
		return err
	}

	acct, err := accountForm(registry)
	if err != nil {
		return err
	}

	if err := registry.Add(acct); err != nil {
		return err
	}
	if err := registry.Save(); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Added %s to %s", acct.ID, registry.Path())))

	var authenticate bool
	if err := huh.NewConfirm().
		Title("Authenticate with YouTube now?").
		Description("Opens browser to complete OAuth flow").
		Value(&authenticate).
		Run(); err != nil || !authenticate {
		return err
	}

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	auth, err := service.Provider().Auth(ctx, &acct)
	if err == nil {
		err = runYouTubeAuth(ctx, auth, cfg.YouTube.RedirectPort)
	}
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("OAuth flow failed: %v", err)))
		fmt.Println(infoStyle.Render("You can retry later with: ytrunner auth " + acct.ID))
	}
	return nil
}

func accountForm(registry *account.Registry) (account.Account, error) {
	var (
		acct     account.Account
		tagsIdx  bool
		validate = func(s string) error {
			if !progress.ValidAccountID(s) {
				return errors.New("use letters, digits, '.', '_' or '-'")
			}
			if _, err := registry.Find(s); err == nil {
				return fmt.Errorf("account %q already exists", s)
			}
			return nil
		}
	)
	acct.Privacy = account.PrivacyPrivate

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account ID").
				Description("Short key used on the command line and for state files").
				Value(&acct.ID).
				Validate(validate),
			huh.NewInput().
				Title("Display name").
				Value(&acct.Name),
			huh.NewSelect[string]().
				Title("Privacy").
				Options(
					huh.NewOption("Private", account.PrivacyPrivate),
					huh.NewOption("Unlisted", account.PrivacyUnlisted),
					huh.NewOption("Public", account.PrivacyPublic),
				).
				Value(&acct.Privacy),
			huh.NewInput().
				Title("Playlist ID (optional)").
				Value(&acct.PlaylistID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Video base").
				Description("Folder, https://, gs:// or s3:// location of vid.mp4 (optional), vid (1).mp4, ...").
				Value(&acct.Streams.Video.Base).
				Validate(required("Video base")),
			huh.NewInput().
				Title("Thumbnail base (optional)").
				Description("Location of thumb (1).jpg, thumb (2).jpg, ...").
				Value(&acct.Streams.Thumbnail.Base),
			huh.NewInput().
				Title("Titles list (optional)").
				Description("Text file with one title per line").
				Value(&acct.Streams.Title.URL),
			huh.NewInput().
				Title("Descriptions list (optional)").
				Value(&acct.Streams.Description.URL),
			huh.NewInput().
				Title("Tags list (optional)").
				Value(&acct.Streams.Tags.URL),
			huh.NewConfirm().
				Title("Use one tags line per upload?").
				Description("Otherwise every upload gets all tags").
				Value(&tagsIdx),
		),
	)

	if err := form.Run(); err != nil {
		return account.Account{}, err
	}

	acct.ID = strings.TrimSpace(acct.ID)
	acct.Streams.Video.Base = strings.TrimSpace(acct.Streams.Video.Base)
	acct.Streams.Tags.Indexed = tagsIdx
	return acct, nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Authorize each account: ytrunner auth <account>")
	fmt.Println("  2. Upload once:            ytrunner once <account>")
	fmt.Println("  3. Keep running:           ytrunner run")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}
