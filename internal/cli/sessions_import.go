// internal/cli/sessions_import.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/ui"
)

var (
	importURL    string
	importFormat string
	importFile   string
)

var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Import cookies from your browser as a session",
	Long: `Creates a session from cookies copied out of a normal browser. Useful on
machines where the interactive login window cannot open.

Formats:
- json: a cookie array as exported by browser extensions or DevTools
- netscape: a cookies.txt file as written by curl or wget
- header: the value of a Cookie request header
- interactive: type names and values one by one`,
	Example: `  # Import a cookies.txt file
  tally sessions import ebay --url https://www.ebay.com --format netscape --file cookies.txt

  # Paste a Cookie header from DevTools
  tally sessions import hotbids --url https://www.hotbids.com --format header

  # Enter cookies by hand
  tally sessions import tcdb --url https://www.tcdb.com`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importURL, "url", "", "Site URL for this session (required)")
	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "interactive", "Import format: interactive, json, netscape, header")
	sessionsImportCmd.Flags().StringVar(&importFile, "file", "", "Read cookies from a file instead of stdin")
	sessionsImportCmd.MarkFlagRequired("url")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	name := args[0]

	var in io.Reader = os.Stdin
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	domain := auth.CookieDomain(importURL)

	var cookies []auth.Cookie
	var err error
	switch importFormat {
	case "interactive":
		cookies, err = importInteractive(in, domain)
	case "json":
		cookies, err = auth.ParseJSON(in)
	case "netscape":
		cookies, err = auth.ParseNetscape(in)
	case "header":
		var line string
		line, err = bufio.NewReader(in).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		cookies = auth.ParseHeader(strings.TrimSpace(line), domain)
	default:
		return fmt.Errorf("unsupported format: %s (use: interactive, json, netscape, header)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := &auth.SessionData{
		Name:      name,
		URL:       importURL,
		Cookies:   cookies,
		Headers:   make(map[string]string),
		CreatedAt: time.Now(),
	}
	session.SetExpiryFromCookies()

	v := vault()
	if err := v.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("\n%s Session '%s' saved %s\n", ui.Success("✓"), name, ui.Dim("("+v.Backend()+")"))
	fmt.Printf("  Cookies: %d\n", len(cookies))
	if !session.ExpiresAt.IsZero() {
		fmt.Printf("  Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Printf("\nUse with:\n  %s\n\n", ui.Accent("tally watch <url> --session "+name))
	return nil
}

func importInteractive(in io.Reader, domain string) ([]auth.Cookie, error) {
	fmt.Println("Open the site in your browser, log in, then open DevTools")
	fmt.Println("(Application > Cookies) and copy each cookie's name and value.")

	var cookies []auth.Cookie
	sc := bufio.NewScanner(in)
	prompt := func(label string) (string, bool) {
		fmt.Print(label)
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}

	for {
		name, ok := prompt("\nCookie name (Enter to finish): ")
		if !ok || name == "" {
			break
		}
		value, ok := prompt("Cookie value: ")
		if !ok {
			break
		}
		if value == "" {
			fmt.Println(ui.Warn("Skipping cookie with empty value"))
			continue
		}
		d, ok := prompt(fmt.Sprintf("Domain [%s]: ", domain))
		if !ok {
			break
		}
		if d == "" {
			d = domain
		}

		cookies = append(cookies, auth.Cookie{
			Name:     name,
			Value:    value,
			Domain:   d,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
		fmt.Printf("%s Added %s (%s)\n", ui.Success("✓"), name, d)
	}
	return cookies, sc.Err()
}
