package config

import "github.com/spf13/cobra"

// RegisterFlags registers the persistent flags every command shares.
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Log in JSON format")
	pf.String("config", "", "Path to a YAML config file (default <data-dir>/config.yaml)")
	pf.StringP("tool", "t", DefaultTool, "Tool profile: baytally, hotbids, tcdb-scout")
	pf.String("profile-file", "", "Load the tool profile from a YAML file")
	pf.String("store", DefaultStoreKind, "Storage backend: sqlite, file, memory")
	pf.String("data-dir", "", "Directory for the store and config (default ~/.tally)")
}

// RegisterFetchFlags registers flags for commands that load pages.
func RegisterFetchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("mode", DefaultMode, "Page source: auto, static, hybrid, spa, file")
	f.String("session", "", "Use cookies from a saved session")
	f.String("proxy", "", "HTTP/SOCKS5 proxy, or a comma-separated list to rotate")
	f.String("timeout", DefaultHTTPTimeout.String(), "Request timeout")
	f.String("user-agent", "", "Custom user agent string")
	f.StringArrayP("header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")
	f.Bool("headful", false, "Show the browser window in spa mode")
}
