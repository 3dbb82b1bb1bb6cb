// internal/cli/sessions.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/ui"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved login sessions",
	Long: `List, view, import and delete saved login sessions.

Sessions hold the cookies of a logged-in browser so that pages behind a
login (watchlists, bid history) can be watched. They are kept in the OS
keyring when one is available, otherwise under the data directory.`,
	Example: `  # List all saved sessions
  tally sessions list

  # View one
  tally sessions view ebay

  # Delete one
  tally sessions delete ebay`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "View details of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsViewCmd, sessionsDeleteCmd)
	sessionsDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	v := vault()
	names, err := v.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("\nNo saved sessions found.")
		fmt.Println("\nCreate one with:")
		fmt.Println("  tally login --session <name>")
		fmt.Println("  tally sessions import <name> --url <url>")
		fmt.Println()
		return nil
	}

	fmt.Printf("\n%s %s\n\n", ui.Bold(fmt.Sprintf("Saved sessions (%d)", len(names))), ui.Dim(v.Backend()))
	now := time.Now()
	for i, name := range names {
		fmt.Printf("%d. %s\n", i+1, ui.Accent(name))

		session, err := v.Peek(name)
		if err != nil {
			fmt.Printf("   %s\n", ui.Warn("error loading: "+err.Error()))
			continue
		}
		fmt.Printf("   URL: %s\n", session.URL)
		fmt.Printf("   Cookies: %d\n", len(session.Cookies))
		fmt.Printf("   %s\n", expiryLine(session, now))
	}
	fmt.Println()
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	name := args[0]
	session, err := vault().Peek(name)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	fmt.Printf("\n%s %s\n\n", ui.Bold("Session"), ui.Accent(name))
	fmt.Printf("URL:      %s\n", session.URL)
	fmt.Printf("Created:  %s\n", session.CreatedAt.Format(time.RFC1123))
	fmt.Printf("Status:   %s\n", expiryLine(session, time.Now()))

	fmt.Printf("\nCookies (%d):\n", len(session.Cookies))
	for i, c := range session.Cookies {
		if i >= 8 {
			fmt.Printf("  ... and %d more\n", len(session.Cookies)-i)
			break
		}
		fmt.Printf("  - %s %s\n", c.Name, ui.Dim("("+c.Domain+")"))
	}
	if len(session.Headers) > 0 {
		fmt.Printf("\nHeaders (%d):\n", len(session.Headers))
		for k := range session.Headers {
			fmt.Printf("  - %s\n", k)
		}
	}
	fmt.Println()
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(fmt.Sprintf("Delete session '%s'? [y/N]: ", name)) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := vault().Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("%s Session '%s' deleted.\n", ui.Success("✓"), name)
	return nil
}

func expiryLine(s *auth.SessionData, now time.Time) string {
	switch {
	case s.ExpiresAt.IsZero():
		return ui.Dim("no expiry")
	case s.Expired(now):
		return ui.Warn(fmt.Sprintf("expired %s ago", now.Sub(s.ExpiresAt).Round(time.Hour)))
	default:
		return ui.Success(fmt.Sprintf("valid, expires %s (in %s)", s.ExpiresAt.Format(time.RFC1123), s.ExpiresAt.Sub(now).Round(time.Hour)))
	}
}
