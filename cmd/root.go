package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/demolab/state-clustering-service/internal/config"
)

var (
	cfgFile string
	verbose bool

	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "statecluster",
	Short: "Cluster US states by demographic similarity",
	Long: `statecluster runs the census demographic analysis pipeline: it cleans
and aggregates the tract-level survey to state level, merges historical
election labels, prunes correlated features, reduces with principal
components, and builds agglomerative and divisive cluster trees over the
states.`,
}

// Execute is the entry point called by main.main().
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		c, _ = cfgpkg.Load("")
	}
	cfg = c
	if rootCmd.PersistentFlags().Changed("verbose") {
		cfg.Verbose = verbose
	}
}
