package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/config"
	"github.com/law-makers/tally/internal/panel"
	"github.com/law-makers/tally/internal/ui"
	"github.com/law-makers/tally/internal/view"
)

var (
	watchBaseURL string
	watchFormat  string
	watchNoInput bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <url|file>",
	Short: "Watch a page and tally items as they appear",
	Long: `Opens the page, scans it once, then keeps watching it. Every change to the
item list schedules a scan after a short quiet period, and the collection is
printed again whenever it grows or changes.

Pages are observed according to --mode:
- static polls the HTML and rescans when the list region changes
- hybrid also runs inline scripts to read data the page embeds
- spa drives Chrome and reacts to DOM mutations as they happen
- file watches a saved HTML file for edits

Type commands on stdin while watching: s (scan), p (pause), c (clear),
e (export), /text (search), sort <mode>, status <value>, q (quit).`,
	Example: `  # Watch an eBay search with the default profile
  tally watch "https://www.ebay.com/sch/i.html?_nkw=pocket+watch"

  # Watch a saved HotBids page, resolving links against the live site
  tally watch saved.html --tool hotbids --base-url https://www.hotbids.com/

  # Render with Chrome and a logged-in session
  tally watch https://www.ebay.com/mye/myebay/watchlist --mode spa --session ebay`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	config.RegisterFetchFlags(watchCmd)

	f := watchCmd.Flags()
	f.String("debounce", config.DefaultDebounce.String(), "Quiet period before a mutation triggers a scan")
	f.String("poll-interval", config.DefaultPollInterval.String(), "How often static pages are re-fetched")
	f.StringVar(&watchBaseURL, "base-url", "", "Resolve links in saved files against this URL")
	f.StringVarP(&watchFormat, "format", "f", "md", "View format: md, html")
	f.BoolVar(&watchNoInput, "no-input", false, "Do not read commands from stdin")
}

func runWatch(cmd *cobra.Command, args []string) error {
	render, err := viewRenderer(watchFormat)
	if err != nil {
		return err
	}

	a, err := requireApp(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	opts, err := a.SourceOptions(args[0])
	if err != nil {
		return err
	}
	opts.BaseURL = watchBaseURL

	src, err := openSource(ctx, opts)
	if err != nil {
		return err
	}

	var commands io.Reader
	if !watchNoInput {
		commands = os.Stdin
	}

	fmt.Printf("\n%s %s %s\n", ui.Bold("Watching"), ui.Accent(src.URL()), ui.Dim("("+src.Name()+", "+a.Profile.Name+")"))
	if !watchNoInput {
		fmt.Println(ui.Dim("Type help for commands, q to stop."))
	}
	fmt.Println()

	p, err := panel.Open(ctx, panel.Options{
		Scanner:   a.Scanner,
		Source:    src,
		Debounce:  a.Config.Debounce,
		ExportDir: a.Config.ExportDir,
		Out:       os.Stdout,
		Commands:  commands,
		Render:    render,
	})
	if err != nil {
		src.Close()
		return err
	}
	p.Wait()

	v := view.Build(a.Store.Records(), a.Store.Prefs())
	fmt.Printf("\n%s %s\n", ui.Success("Stopped."), view.Summary(v))
	log.Debug().Int("scans", p.Scheduler().Scans()).Msg("Watch finished")
	return nil
}

// viewRenderer picks the panel renderer for a --format value
func viewRenderer(format string) (panel.Renderer, error) {
	switch format {
	case "md", "markdown", "":
		return panel.MarkdownRenderer, nil
	case "html":
		return func(w io.Writer, v view.View) error {
			out, err := view.RenderHTML(v)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, out)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use: md, html)", format)
	}
}
