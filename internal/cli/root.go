// internal/cli/root.go
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/app"
	"github.com/law-makers/tally/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Collect listings from marketplace pages into a running tally",
	Long: `Tally watches marketplace and catalogue pages (eBay, HotBids, TCDB) and merges
every item it sees into a local collection that survives restarts.

Items are matched across page loads by marker class, item id, or a
fallback key, so reloading or paginating never creates duplicates. The
collection can be filtered, sorted, totalled and exported to CSV.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command. This is called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	// Config is loaded for every command; the application itself is built
	// only by commands that call requireApp.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		app.ConfigureLogging(cfg)
		setConfig(cfg)
		log.Debug().
			Str("tool", cfg.Tool).
			Str("store", cfg.StoreKind).
			Str("data_dir", cfg.DataDir).
			Msg("Configuration loaded")
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		closeApp()
	}

	rootCmd.Flags().BoolP("help", "h", false, "Help for tally")
	rootCmd.Flags().Bool("version", false, "Version for tally")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
}
