package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/browser"
	"github.com/law-makers/tally/internal/config"
	"github.com/law-makers/tally/internal/scan"
	"github.com/law-makers/tally/internal/source"
	"github.com/law-makers/tally/internal/ui"
)

var (
	scanBaseURL     string
	scanConcurrency int
)

var scanCmd = &cobra.Command{
	Use:   "scan <url|file>...",
	Short: "Scan pages once and merge their items",
	Long: `Fetches each page once, extracts its items and merges them into the
collection. Items already collected keep their first-seen time; new ones are
appended.

Several inputs are scanned concurrently. Inputs on the same host are scanned
one after another so the per-host rate limit is respected.`,
	Example: `  # Scan one search page
  tally scan "https://www.ebay.com/sch/i.html?_nkw=pocket+watch"

  # Scan several result pages of a TCDB set
  tally scan --tool tcdb-scout https://www.tcdb.com/ViewAll.cfm/sid/1 https://www.tcdb.com/ViewAll.cfm/sid/1?PageIndex=2

  # Scan saved pages
  tally scan page1.html page2.html --base-url https://www.ebay.com/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	config.RegisterFetchFlags(scanCmd)

	scanCmd.Flags().StringVar(&scanBaseURL, "base-url", "", "Resolve links in saved files against this URL")
	scanCmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", 0, "Parallel scans (0 = auto)")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	open := func(ctx context.Context, input string) (source.Source, error) {
		opts, err := a.SourceOptions(input)
		if err != nil {
			return nil, err
		}
		opts.BaseURL = scanBaseURL
		return openSource(ctx, opts)
	}

	if len(args) == 1 {
		src, err := open(ctx, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		res, err := a.Scanner.Scan(ctx, src)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printResult(res)
		printStoreWarning(a.Store.Warning())
		return nil
	}

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failed int
	var results []scan.Item
	for item := range scan.NewBatch(a.Scanner, open, scanConcurrency).Run(ctx, args) {
		_ = bar.Add(1)
		results = append(results, item)
	}
	_ = bar.Finish()

	for _, item := range results {
		if item.Err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", ui.Error("✗"), item.Input, item.Err)
			continue
		}
		printResult(item.Result)
	}

	fmt.Printf("\n%s items in collection, %d of %d pages scanned\n",
		ui.Bold(fmt.Sprint(a.Store.Len())), len(args)-failed, len(args))
	printStoreWarning(a.Store.Warning())
	if failed == len(args) {
		return fmt.Errorf("all %d scans failed", failed)
	}
	return nil
}

func printResult(res scan.Result) {
	status := ui.Dim("no change")
	if res.Changed {
		status = ui.Success("updated")
	}
	found := fmt.Sprintf("%d items", res.Candidates)
	if res.Scripted > 0 {
		found += fmt.Sprintf(" + %d from page data", res.Scripted)
	}
	fmt.Printf("%s %s  %s  %s  %s\n", ui.Success("✓"), res.URL, found, status, ui.Dim(fmt.Sprintf("(%s, %d total)", res.Source, res.Total)))
}

func printStoreWarning(w string) {
	if w != "" {
		fmt.Fprintln(os.Stderr, ui.Warn(w))
	}
}

// openSource opens a page source, turning a missing browser into advice
func openSource(ctx context.Context, opts source.Options) (source.Source, error) {
	src, err := source.Open(ctx, opts)
	if code, _ := source.CodeOf(err); code == source.ErrCodeBrowser || errors.Is(err, source.ErrBrowserUnavailable) {
		return nil, fmt.Errorf("%w\nInstall Chrome or set %s, or use --mode static", err, browser.ChromeEnv)
	}
	return src, err
}
