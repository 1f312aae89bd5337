package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"ytrunner/internal/app"
	"ytrunner/internal/distribution/youtube"
	"ytrunner/pkg/config"
)

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const authTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth <account>",
	Short: "Authorize an account with YouTube (OAuth)",
	Long: `Complete the YouTube OAuth flow for one account. The account's client_secrets
are used when configured, otherwise YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuth,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check which accounts hold a usable token",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func loadService(ctx context.Context) (*app.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.BuildService(ctx, cfg)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	accounts := service.Registry().Accounts()
	if len(accounts) == 0 {
		return errNoAccounts
	}

	fmt.Println(authInfoStyle.Render("\nAccount Authentication Status:\n"))

	for i := range accounts {
		acct := &accounts[i]
		auth, err := service.Provider().Auth(ctx, acct)
		switch {
		case err != nil:
			fmt.Println(authErrorStyle.Render(fmt.Sprintf("✗ %s: %v", acct.ID, err)))
		case auth.IsAuthenticated():
			fmt.Println(authSuccessStyle.Render(fmt.Sprintf("✓ %s: authenticated (%s)", acct.ID, auth.TokenPath())))
		default:
			fmt.Println(authErrorStyle.Render(fmt.Sprintf("✗ %s: not authenticated", acct.ID)))
			fmt.Println(authInfoStyle.Render("  Run: ytrunner auth " + acct.ID))
		}
	}

	fmt.Println()
	return nil
}

func runAuth(cmd *cobra.Command, args []string) error {
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

	auth, err := service.Provider().Auth(ctx, acct)
	if err != nil {
		return err
	}

	return runYouTubeAuth(ctx, auth, service.Config().YouTube.RedirectPort)
}

func runYouTubeAuth(ctx context.Context, auth *youtube.Auth, port int) error {
	state := uuid.NewString()
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           callbackHandler(state, codeChan, errChan),
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	authURL := auth.GetAuthURL(state)
	fmt.Println(authInfoStyle.Render("\nOpening browser for YouTube authentication..."))
	fmt.Println(authInfoStyle.Render("If browser doesn't open, visit:\n" + authURL))

	_ = browser.OpenURL(authURL)

	fmt.Println(authInfoStyle.Render("\nWaiting for authentication..."))

	select {
	case code := <-codeChan:
		if err := auth.Exchange(ctx, code); err != nil {
			return err
		}
		fmt.Println(authSuccessStyle.Render("✓ YouTube authentication complete"))
		fmt.Println(authSuccessStyle.Render("  Token saved to: " + auth.TokenPath()))
		return nil

	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()

	case <-time.After(authTimeout):
		return fmt.Errorf("authentication timed out")
	}
}

func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := query.Get("code")
		if code == "" {
			sendErr(errChan, fmt.Errorf("no code in callback: %s", query.Get("error")))
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>")
			return
		}

		select {
		case codeChan <- code:
		default:
		}
		_, _ = fmt.Fprintf(w, "<html><body><h1>Success!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})
}

func sendErr(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}
