package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/export"
	"github.com/law-makers/tally/internal/ui"
	"github.com/law-makers/tally/internal/view"
	"github.com/law-makers/tally/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the collected items",
	Long: `Prints the collection for the selected tool, filtered and sorted by the
saved preferences. --query, --sort and --status override the saved values
for this listing only.`,
	Example: `  # Show everything collected with the eBay profile
  tally list

  # Cheapest knives first, as JSON
  tally list --query knife --sort price-asc --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save the collection to a dated CSV or JSON file",
	Example: `  # Write baytally-YYYY-MM-DD.csv into the current directory
  tally export

  # JSON into a folder
  tally export --format json --dir ~/exports`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every collected item for the tool",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change the saved view preferences",
	Long: `Shows the saved search, sort order, status filter and capture switch.
Any flag given is saved immediately and used by watch and list.`,
	Example: `  # Show preferences
  tally prefs

  # Sort by price and pause mutation capture
  tally prefs --sort price-desc --capture=false`,
	Args: cobra.NoArgs,
	RunE: runPrefs,
}

func init() {
	rootCmd.AddCommand(listCmd, exportCmd, clearCmd, prefsCmd)

	lf := listCmd.Flags()
	lf.String("query", "", "Only items whose text contains this")
	lf.String("sort", "", "Sort: newest, oldest, price-asc, price-desc, title")
	lf.String("status", "", "Only items with this status (all for every status)")
	lf.StringP("format", "f", "md", "Output format: md, html, json, csv")

	ef := exportCmd.Flags()
	ef.String("dir", "", "Output directory (default from config, else current directory)")
	ef.StringP("format", "f", "csv", "File format: csv, json")

	clearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	pf := prefsCmd.Flags()
	pf.String("query", "", "Saved search text")
	pf.String("sort", "", "Saved sort mode")
	pf.String("status", "", "Saved status filter")
	pf.Bool("capture", true, "Scan automatically when the page changes")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}

	prefs, err := prefsFromFlags(cmd, a.Store.Prefs())
	if err != nil {
		return err
	}
	v := view.Build(a.Store.Records(), prefs)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "md", "markdown":
		out, err := view.RenderMarkdown(v)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n\n%s\n", ui.Bold(view.Summary(v)), out)
	case "html":
		out, err := view.RenderHTML(v)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		rows := v.Rows
		if rows == nil {
			rows = []models.Record{}
		}
		return enc.Encode(rows)
	case "csv":
		return export.WriteCSV(os.Stdout, v.Rows)
	default:
		return fmt.Errorf("unsupported format: %s (use: md, html, json, csv)", format)
	}
	printStoreWarning(a.Store.Warning())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = a.Config.ExportDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	records := a.Store.Records()
	format, _ := cmd.Flags().GetString("format")
	var path string
	switch format {
	case "csv":
		path, err = export.SaveCSV(dir, a.Profile.Name, time.Now(), records)
	case "json":
		path, err = export.SaveJSON(dir, a.Profile.Name, time.Now(), records)
	default:
		return fmt.Errorf("unsupported format: %s (use: csv, json)", format)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("%s Exported %d items to %s\n", ui.Success("✓"), len(records), path)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}

	n := a.Store.Len()
	if n == 0 {
		fmt.Println("Nothing to clear.")
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirm(fmt.Sprintf("Clear %d %s items? [y/N]: ", n, a.Profile.Name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	a.Store.Clear()
	fmt.Printf("%s Cleared %d items.\n", ui.Success("✓"), n)
	printStoreWarning(a.Store.Warning())
	return nil
}

func runPrefs(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd)
	if err != nil {
		return err
	}

	prefs, err := prefsFromFlags(cmd, a.Store.Prefs())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("capture") {
		prefs.Capture, _ = cmd.Flags().GetBool("capture")
	}
	if a.Store.SetPrefs(prefs) {
		fmt.Println(ui.Success("Preferences saved."))
	}

	prefs = a.Store.Prefs()
	capture := "on"
	if !prefs.Capture {
		capture = "paused"
	}
	status := prefs.Status
	if status == "" {
		status = view.StatusAll
	}
	fmt.Printf("%s  %s\n", ui.Bold("Tool:   "), a.Profile.Name)
	fmt.Printf("%s  %q\n", ui.Bold("Search: "), prefs.Query)
	fmt.Printf("%s  %s\n", ui.Bold("Sort:   "), prefs.Sort)
	fmt.Printf("%s  %s\n", ui.Bold("Status: "), status)
	fmt.Printf("%s  %s\n", ui.Bold("Capture:"), capture)
	if statuses := view.Statuses(a.Store.Records()); len(statuses) > 0 {
		fmt.Printf("%s  %s\n", ui.Dim("Known statuses:"), strings.Join(statuses, ", "))
	}
	printStoreWarning(a.Store.Warning())
	return nil
}

// prefsFromFlags overlays the query, sort and status flags the user set
func prefsFromFlags(cmd *cobra.Command, prefs models.Prefs) (models.Prefs, error) {
	f := cmd.Flags()
	if f.Changed("query") {
		prefs.Query, _ = f.GetString("query")
	}
	if f.Changed("sort") {
		s, _ := f.GetString("sort")
		mode, ok := models.ParseSortMode(s)
		if !ok {
			return prefs, fmt.Errorf("unknown sort mode %q (use: newest, oldest, price-asc, price-desc, title)", s)
		}
		prefs.Sort = mode
	}
	if f.Changed("status") {
		prefs.Status, _ = f.GetString("status")
		if strings.EqualFold(prefs.Status, view.StatusAll) {
			prefs.Status = ""
		}
	}
	return prefs, nil
}

func confirm(prompt string) bool {
	fmt.Print(ui.Warn(prompt))
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
