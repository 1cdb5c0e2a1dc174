package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/demolab/state-clustering-service/pkg/pipeline"
	"github.com/demolab/state-clustering-service/pkg/report"
)

var (
	flagTracts    string
	flagElection  string
	flagOutputDir string
	flagYear      int
	flagThreshold float64
	flagFloor     float64
	flagLinkage   string
	flagCut       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis pipeline and write the report artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		pcfg := cfg.Pipeline()

		res, err := pipeline.Run(pcfg, nil)
		if err != nil {
			return err
		}

		report.WriteSummary(os.Stdout, res)
		fmt.Println()

		fmt.Printf("Agglomerative clusters (k=%d)\n", cfg.ClusterCut)
		if err := report.WriteClusters(os.Stdout, res.Agglomerative, cfg.ClusterCut); err != nil {
			return err
		}
		fmt.Printf("\nDivisive clusters (k=%d)\n", cfg.ClusterCut)
		if err := report.WriteClusters(os.Stdout, res.Divisive, cfg.ClusterCut); err != nil {
			return err
		}

		files, err := report.WritePlots(res, pcfg.OutputDir)
		if err != nil {
			return err
		}
		fmt.Println("\nPlots written:")
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&flagTracts, "tracts", "", "tract survey CSV (overrides config)")
	runCmd.Flags().StringVar(&flagElection, "election", "", "election returns CSV (overrides config)")
	runCmd.Flags().StringVar(&flagOutputDir, "output", "", "output directory for plots (overrides config)")
	runCmd.Flags().IntVar(&flagYear, "year", 0, "election year (overrides config)")
	runCmd.Flags().Float64Var(&flagThreshold, "corr-threshold", 0, "correlation pruning threshold (overrides config)")
	runCmd.Flags().Float64Var(&flagFloor, "variance-floor", 0, "minimum per-component variance share (overrides config)")
	runCmd.Flags().StringVar(&flagLinkage, "linkage", "", "agglomerative linkage: single|complete|average|centroid")
	runCmd.Flags().IntVar(&flagCut, "clusters", 0, "cluster count for the printed membership tables")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("tracts") {
		cfg.TractFile = flagTracts
	}
	if f.Changed("election") {
		cfg.ElectionFile = flagElection
	}
	if f.Changed("output") {
		cfg.OutputDir = flagOutputDir
	}
	if f.Changed("year") {
		cfg.ElectionYear = flagYear
	}
	if f.Changed("corr-threshold") {
		cfg.CorrelationThreshold = flagThreshold
	}
	if f.Changed("variance-floor") {
		cfg.VarianceFloor = flagFloor
	}
	if f.Changed("linkage") {
		cfg.Linkage = flagLinkage
	}
	if f.Changed("clusters") {
		cfg.ClusterCut = flagCut
	}
}
