// Package pipeline threads the analysis stages together: load and clean the
// tract survey, aggregate to county and state level, merge the election
// labels, prune correlated features, reduce with principal components, and
// build both hierarchical cluster trees. Each stage consumes the previous
// stage's output immutably; the Result keeps every intermediate artifact so
// the report can narrate the whole run.
package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/demolab/state-clustering-service/pkg/aggregate"
	"github.com/demolab/state-clustering-service/pkg/census"
	"github.com/demolab/state-clustering-service/pkg/election"
	"github.com/demolab/state-clustering-service/pkg/features"
	"github.com/demolab/state-clustering-service/pkg/hcluster"
	"github.com/demolab/state-clustering-service/pkg/models"
	"github.com/demolab/state-clustering-service/pkg/pca"
)

// ===== CONFIGURATION =====

// Config contains all configuration for one pipeline run.
type Config struct {
	// Input files
	TractFile    string `json:"tract_file"`
	ElectionFile string `json:"election_file"`
	OutputDir    string `json:"output_dir"`

	// Stage configuration
	Census               census.Config   `json:"census"`
	Election             election.Config `json:"election"`
	CorrelationThreshold float64         `json:"correlation_threshold"`
	PCA                  pca.Config      `json:"pca"`
	Linkage              string          `json:"linkage"` // agglomerative linkage

	// Output configuration
	Verbose bool `json:"verbose"`
}

// DefaultConfig returns sensible defaults for the full pipeline.
func DefaultConfig() Config {
	return Config{
		OutputDir:            "output",
		Census:               census.DefaultConfig(),
		Election:             election.DefaultConfig(),
		CorrelationThreshold: features.DefaultThreshold,
		PCA:                  pca.DefaultConfig(),
		Linkage:              "complete",
	}
}

// ProgressCallback receives stage-level progress messages.
type ProgressCallback func(stage, message string)

// ===== RESULT =====

// Result contains everything one run produced, stage by stage.
type Result struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Runtime time.Duration `json:"runtime"`

	// Cleaning and aggregation
	CleanReport *census.CleanReport `json:"clean_report"`
	Counties    *models.RegionTable `json:"-"`
	States      *models.RegionTable `json:"-"`

	// Election merge
	Mismatch models.JoinMismatchError `json:"mismatch"`
	Vectors  *models.StateVectors     `json:"-"`

	// Feature pruning
	PruneResult *features.Result     `json:"prune_result"`
	Pruned      *models.StateVectors `json:"-"`

	// Dimensionality reduction
	Model  *pca.Model `json:"-"`
	Scores *mat.Dense `json:"-"` // states x selected components

	// Cluster trees
	Agglomerative *hcluster.Dendrogram `json:"-"`
	Divisive      *hcluster.Dendrogram `json:"-"`
}

// ===== PIPELINE =====

// Run executes the full pipeline. progress may be nil.
func Run(cfg Config, progress ProgressCallback) (*Result, error) {
	startTime := time.Now()
	result := &Result{}

	fail := func(stage string, err error) (*Result, error) {
		result.Error = fmt.Sprintf("%s failed: %v", stage, err)
		result.Runtime = time.Since(startTime)
		return result, fmt.Errorf("%s failed: %w", stage, err)
	}
	report := func(stage, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		if progress != nil {
			progress(stage, msg)
		}
		if cfg.Verbose {
			fmt.Printf("[%s] %s\n", stage, msg)
		}
	}

	link, err := hcluster.ParseLinkage(cfg.Linkage)
	if err != nil {
		return fail("config", err)
	}

	// Step 1: load and clean the tract survey
	report("census", "loading tracts from %s", cfg.TractFile)
	raw, cleanReport, err := census.LoadTracts(cfg.TractFile, cfg.Census)
	if err != nil {
		return fail("census load", err)
	}
	report("census", "loaded %d rows (%d excluded), %d columns with missing cells",
		raw.NumRows(), cleanReport.RowsExcluded, len(cleanReport.MissingBefore))

	cleaned, err := census.Clean(raw, cfg.Census, cleanReport)
	if err != nil {
		return fail("census clean", err)
	}
	result.CleanReport = cleanReport
	report("census", "cleaned: %d cells imputed", cleanReport.TotalImputed())

	// Step 2: aggregate to county and state level
	counties, err := aggregate.Aggregate(cleaned, aggregate.County, cfg.Census.TotalPopColumn)
	if err != nil {
		return fail("county aggregation", err)
	}
	states, err := aggregate.Aggregate(cleaned, aggregate.State, cfg.Census.TotalPopColumn)
	if err != nil {
		return fail("state aggregation", err)
	}
	result.Counties = counties
	result.States = states
	report("aggregate", "%d counties, %d states", counties.NumRows(), states.NumRows())

	// Step 3: election shares and join
	report("election", "loading returns from %s", cfg.ElectionFile)
	byState, err := election.LoadReturns(cfg.ElectionFile, cfg.Election)
	if err != nil {
		return fail("election load", err)
	}
	records, err := election.Shares(byState, cfg.Election)
	if err != nil {
		return fail("election shares", err)
	}
	vectors, mismatch := election.Join(states, records)
	result.Vectors = vectors
	result.Mismatch = mismatch
	if !mismatch.Empty() {
		report("election", "warning: %v", mismatch)
	}
	report("election", "joined %d states for %d (%s vs %s)",
		vectors.NumRows(), cfg.Election.Year, cfg.Election.CandidateA, cfg.Election.CandidateB)

	// Step 4: prune correlated features
	pruned, pruneResult, err := features.Prune(vectors, cfg.CorrelationThreshold)
	if err != nil {
		return fail("feature pruning", err)
	}
	result.Pruned = pruned
	result.PruneResult = pruneResult
	report("features", "kept %d of %d columns (|corr| > %.2f pruned)",
		len(pruneResult.Kept), len(vectors.Columns), cfg.CorrelationThreshold)

	// Step 5: principal components
	model, err := pca.Fit(pruned, cfg.PCA)
	if err != nil {
		return fail("pca", err)
	}
	result.Model = model
	result.Scores = model.Transform(pruned.Values, 0)
	report("pca", "selected %d of %d components (%.1f%% cumulative variance)",
		model.Selected, model.NumComponents(), model.CumulativeShare(model.Selected)*100)

	// Step 6: cluster trees
	agg, err := hcluster.Agglomerative(result.Scores, pruned.States, link)
	if err != nil {
		return fail("agglomerative clustering", err)
	}
	div, err := hcluster.Divisive(result.Scores, pruned.States)
	if err != nil {
		return fail("divisive clustering", err)
	}
	result.Agglomerative = agg
	result.Divisive = div
	report("hcluster", "built %s and %s trees over %d states", agg.Method, div.Method, len(agg.Labels))

	result.Success = true
	result.Runtime = time.Since(startTime)
	report("pipeline", "completed in %v", result.Runtime)
	return result, nil
}
