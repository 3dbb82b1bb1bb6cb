package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/law-makers/tally/internal/config"
	"github.com/law-makers/tally/internal/ui"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [name]",
	Short: "List the built-in tool profiles",
	Long: `Lists the built-in site profiles. With a name, prints that profile as YAML,
ready to copy into a file for --profile-file and adjust.`,
	Example: `  # List profiles
  tally profiles

  # Start a custom profile from the eBay one
  tally profiles baytally > my-ebay.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		p, err := config.Profile(args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(p)
	}

	current := currentConfig().Tool
	fmt.Printf("\n%s\n\n", ui.Bold("Profiles"))
	for _, p := range config.Profiles() {
		marker := "  "
		if p.Name == current {
			marker = ui.Success("* ")
		}
		host := p.ExpectedHost
		if host == "" {
			host = "any host"
		}
		fmt.Printf("%s%s %s\n", marker, ui.Accent(fmt.Sprintf("%-12s", p.Name)), ui.Dim(host))
		if len(p.Containers) > 0 {
			fmt.Printf("    %s %s\n", ui.Dim("items:"), strings.Join(p.Containers, ", "))
		}
	}
	fmt.Println()
	return nil
}
