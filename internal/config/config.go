// Package config loads and saves the CLI configuration. Precedence follows
// the usual order: flags > environment > config file > defaults.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/demolab/state-clustering-service/pkg/pca"
	"github.com/demolab/state-clustering-service/pkg/pipeline"
)

// Global is the flat, file-friendly view of the pipeline configuration.
type Global struct {
	TractFile    string `mapstructure:"tract_file" yaml:"tract_file"`
	ElectionFile string `mapstructure:"election_file" yaml:"election_file"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`

	ElectionYear int    `mapstructure:"election_year" yaml:"election_year"`
	CandidateA   string `mapstructure:"candidate_a" yaml:"candidate_a"`
	CandidateB   string `mapstructure:"candidate_b" yaml:"candidate_b"`

	CorrelationThreshold float64 `mapstructure:"correlation_threshold" yaml:"correlation_threshold"`
	SelectionRule        string  `mapstructure:"selection_rule" yaml:"selection_rule"`
	VarianceFloor        float64 `mapstructure:"variance_floor" yaml:"variance_floor"`
	CumulativeTarget     float64 `mapstructure:"cumulative_target" yaml:"cumulative_target"`

	Linkage    string `mapstructure:"linkage" yaml:"linkage"`
	ClusterCut int    `mapstructure:"cluster_cut" yaml:"cluster_cut"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// Load reads configuration from file, environment (STATECLUSTER_*), and
// defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STATECLUSTER")
	v.AutomaticEnv()

	defaults := pipeline.DefaultConfig()
	v.SetDefault("tract_file", "data/census_tracts.csv")
	v.SetDefault("election_file", "data/election_returns.csv")
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("election_year", defaults.Election.Year)
	v.SetDefault("candidate_a", defaults.Election.CandidateA)
	v.SetDefault("candidate_b", defaults.Election.CandidateB)
	v.SetDefault("correlation_threshold", defaults.CorrelationThreshold)
	v.SetDefault("selection_rule", string(defaults.PCA.Rule))
	v.SetDefault("variance_floor", defaults.PCA.MinShare)
	v.SetDefault("cumulative_target", defaults.PCA.CumTarget)
	v.SetDefault("linkage", defaults.Linkage)
	v.SetDefault("cluster_cut", 6)
	v.SetDefault("verbose", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var g Global
	if err := v.Unmarshal(&g); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &g, nil
}

// Save writes the configuration as YAML.
func Save(g *Global, path string) error {
	b, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Pipeline maps the flat configuration onto the pipeline's nested config.
func (g *Global) Pipeline() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.TractFile = g.TractFile
	cfg.ElectionFile = g.ElectionFile
	cfg.OutputDir = g.OutputDir
	cfg.Election.Year = g.ElectionYear
	cfg.Election.CandidateA = g.CandidateA
	cfg.Election.CandidateB = g.CandidateB
	cfg.CorrelationThreshold = g.CorrelationThreshold
	cfg.PCA.Rule = pca.SelectionRule(g.SelectionRule)
	cfg.PCA.MinShare = g.VarianceFloor
	cfg.PCA.CumTarget = g.CumulativeTarget
	cfg.Linkage = g.Linkage
	cfg.Verbose = g.Verbose
	return cfg
}
