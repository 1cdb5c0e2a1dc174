package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/demolab/state-clustering-service/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "statecluster.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := cfgpkg.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
