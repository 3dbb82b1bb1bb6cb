// internal/cli/login.go
package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/config"
	"github.com/law-makers/tally/internal/ui"
)

var (
	loginSession        string
	loginWait           string
	loginTimeout        string
	remoteDebuggingPort int
)

var loginCmd = &cobra.Command{
	Use:   "login [url]",
	Short: "Log in to a site in a browser window and save the session",
	Long: `Opens a visible browser window so you can log in by hand. Once the
account page shows up (or you press Enter) every cookie is saved as a
session, and watch/scan use it with --session.

Without a URL the sign-in page of the selected tool profile is opened.

For headless machines use --remote-debug and attach from chrome://inspect.`,
	Example: `  # Log in to eBay for watchlist pages
  tally login --session ebay

  # Log in to another site and wait for a selector
  tally login https://www.hotbids.com/login --session hotbids --wait ".account-menu"

  # Use the session
  tally watch https://www.ebay.com/mye/myebay/watchlist --session ebay --mode spa`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginSession, "session", "s", "", "Session name to save (default: the tool name)")
	loginCmd.Flags().StringVarP(&loginWait, "wait", "w", "", "CSS selector that appears once logged in")
	loginCmd.Flags().StringVar(&loginTimeout, "login-timeout", "5m", "Timeout for the login")
	loginCmd.Flags().IntVar(&remoteDebuggingPort, "remote-debug", 0, "Enable Chrome remote debugging on this port (e.g. 9222)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	profile, err := config.ResolveProfile(cfg)
	if err != nil {
		return err
	}

	url := profile.LoginURL
	if len(args) == 1 {
		url = args[0]
	}
	if url == "" {
		return fmt.Errorf("profile %s has no login page; pass the URL", profile.Name)
	}
	wait := loginWait
	if wait == "" && len(args) == 0 {
		wait = profile.LoginWait
	}
	name := loginSession
	if name == "" {
		name = profile.Name
	}

	timeout, err := time.ParseDuration(loginTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	log.Info().Str("url", url).Str("session", name).Msg("Initiating login")

	fmt.Printf("\n%s\n\n", ui.Bold("Interactive login"))
	fmt.Printf("  %s %s\n", ui.Bold("Session:"), name)
	fmt.Printf("  %s %s\n", ui.Bold("URL:    "), url)
	if wait != "" {
		fmt.Printf("  %s %s\n", ui.Bold("Waiting:"), wait)
	} else {
		fmt.Printf("  %s\n", ui.Dim("Press Enter here once you are logged in."))
	}
	fmt.Printf("  %s %s\n\n", ui.Bold("Timeout:"), timeout)

	session, err := auth.InteractiveLogin(commandContext(cmd), auth.LoginOptions{
		SessionName:         name,
		URL:                 url,
		WaitSelector:        wait,
		Timeout:             timeout,
		RemoteDebuggingPort: remoteDebuggingPort,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	v := vault()
	if err := v.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Println(ui.Success("✓ Session saved") + ui.Dim(" ("+v.Backend()+")"))
	fmt.Printf("  %s\n", ui.Accent("tally watch <url> --session "+name))
	if !session.ExpiresAt.IsZero() {
		fmt.Printf("\nSession expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Println()
	return nil
}
