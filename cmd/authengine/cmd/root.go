package cmd

import (
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	configPath string
)

// rootCmd is the base authengine command.
var rootCmd = &cobra.Command{
	Use:   "authengine",
	Short: "Clustered credential-verification service",
	Long: `authengine fronts heterogeneous credential backends (File, Config, LDAP,
RADIUS, ODBC, custom) behind a single Authenticate call, with a realm map,
result caches, lockout tracking, and optional Redis-backed cluster sync.

Examples:
  # Run the engine with the reference HTTP adapter
  authengine serve --config authengine.yaml

  # Check a realm map file parses and every backend opens cleanly
  authengine validate-realmmap --config authengine.yaml

  # Broadcast a cache flush to every cluster peer
  authengine flush-cache --config authengine.yaml --realm corp
`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to authengine YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateRealmMapCmd)
	rootCmd.AddCommand(flushCacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets build version information, called from main at link time
// via -ldflags if desired.
func SetVersion(v, bt, gc string) {
	version, buildTime, gitCommit = v, bt, gc
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("authengine version %s (build %s, commit %s)\n", version, buildTime, gitCommit)
		return nil
	},
}
