package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/demolab/state-clustering-service/pkg/aggregate"
	"github.com/demolab/state-clustering-service/pkg/census"
	"github.com/demolab/state-clustering-service/pkg/election"
)

func testCensusConfig() census.Config {
	return census.Config{
		StateColumn:     "State",
		CountyColumn:    "County",
		TotalPopColumn:  "TotalPop",
		ExcludeStates:   []string{"Puerto Rico"},
		PercentColumns:  []string{"Poverty", "Transit"},
		WeightedColumns: []string{"IncomePerCap"},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestEndToEndSingleState is the 4-tract scenario: two counties in one
// state, one tract missing a value that must come from the same-county
// mean, exactly one state-level row out, and a per-capita value bounded by
// the contributing tracts.
func TestEndToEndSingleState(t *testing.T) {
	dir := t.TempDir()
	// Four tracts, two counties, one state; the first tract is missing
	// IncomePerCap.
	tractsMissing := writeFile(t, dir, "tracts.csv", `State,County,TotalPop,Poverty,Transit,IncomePerCap
Alabama,Autauga,1000,10,5,
Alabama,Autauga,3000,20,5,30000
Alabama,Baldwin,2000,30,10,25000
Alabama,Baldwin,4000,25,10,35000
`)

	cfg := testCensusConfig()
	table, report, err := census.LoadTracts(tractsMissing, cfg)
	if err != nil {
		t.Fatalf("LoadTracts failed: %v", err)
	}
	cleaned, err := census.Clean(table, cfg, report)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	t.Run("MissingValueFilledFromCountyMean", func(t *testing.T) {
		if report.ImputedByCounty["IncomePerCap"] != 1 {
			t.Errorf("expected 1 county-mean fill, got %d", report.ImputedByCounty["IncomePerCap"])
		}
		// Only the other Autauga tract contributes: 30000, weighted by the
		// tract's own 1000 people.
		j := cleaned.ColumnIndex("IncomePerCap")
		if got := cleaned.Values[0][j]; got != 30000*1000 {
			t.Errorf("expected imputed weighted income %v, got %v", 30000.0*1000, got)
		}
	})

	states, err := aggregate.Aggregate(cleaned, aggregate.State, cfg.TotalPopColumn)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	t.Run("ExactlyOneStateRow", func(t *testing.T) {
		if states.NumRows() != 1 {
			t.Fatalf("expected 1 state-level row, got %d", states.NumRows())
		}
		if states.Keys[0] != "Alabama" {
			t.Errorf("expected Alabama, got %q", states.Keys[0])
		}
	})

	t.Run("PerCapitaBoundedByContributingTracts", func(t *testing.T) {
		// Tract per-capita incomes after imputation: 30000, 30000, 25000,
		// 35000. The state figure must land inside their range.
		got := states.Values[0][states.ColumnIndex("IncomePerCap")]
		if got < 25000 || got > 35000 {
			t.Errorf("state per-capita income %v outside tract range [25000,35000]", got)
		}
	})
}

const testTractsCSV = `State,County,TotalPop,Poverty,Transit,IncomePerCap
Alabama,Autauga,1000,30,2,20000
Alabama,Baldwin,2000,35,3,22000
Vermont,Addison,1500,10,20,40000
Vermont,Bennington,2500,12,22,42000
Wyoming,Albany,1200,28,3,21000
Wyoming,Campbell,1800,32,2,19000
`

const testReturnsCSV = `year,state,candidate,party,candidatevotes
2016,Alabama,Alice Ames,red,700
2016,Alabama,Bob Barker,blue,300
2016,Vermont,Alice Ames,red,250
2016,Vermont,Bob Barker,blue,750
2016,Wyoming,Alice Ames,red,650
2016,Wyoming,Bob Barker,blue,350
2016,New Hampshire,Alice Ames,red,400
2016,New Hampshire,Bob Barker,blue,600
`

func testRunConfig(t *testing.T) Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TractFile = writeFile(t, dir, "tracts.csv", testTractsCSV)
	cfg.ElectionFile = writeFile(t, dir, "returns.csv", testReturnsCSV)
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Census = testCensusConfig()
	cfg.Election = election.Config{
		Year:            2016,
		CandidateA:      "Alice Ames",
		CandidateB:      "Bob Barker",
		YearColumn:      "year",
		StateColumn:     "state",
		CandidateColumn: "candidate",
		VotesColumn:     "candidatevotes",
	}
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testRunConfig(t)

	var stages []string
	res, err := Run(cfg, func(stage, msg string) { stages = append(stages, stage) })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}

	t.Run("AllStagesReport", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, s := range stages {
			seen[s] = true
		}
		for _, want := range []string{"census", "aggregate", "election", "features", "pca", "hcluster", "pipeline"} {
			if !seen[want] {
				t.Errorf("no progress reported for stage %q", want)
			}
		}
	})

	t.Run("JoinDropsUnmatchedStates", func(t *testing.T) {
		if res.Vectors.NumRows() != 3 {
			t.Errorf("expected 3 joined states, got %d", res.Vectors.NumRows())
		}
		if res.Mismatch.Empty() {
			t.Error("expected a join mismatch for New Hampshire")
		}
		if !reflect.DeepEqual(res.Mismatch.MissingDemographic, []string{"New Hampshire"}) {
			t.Errorf("unexpected mismatch: %v", res.Mismatch.MissingDemographic)
		}
	})

	t.Run("LabelsFollowVoteShares", func(t *testing.T) {
		for i, state := range res.Vectors.States {
			wantA := state == "Alabama" || state == "Wyoming"
			if res.Vectors.LeansA[i] != wantA {
				t.Errorf("state %s: expected leansA=%v", state, wantA)
			}
		}
	})

	t.Run("ScoresMatchSelectedComponents", func(t *testing.T) {
		rows, cols := res.Scores.Dims()
		if rows != 3 {
			t.Errorf("expected 3 score rows, got %d", rows)
		}
		if cols != res.Model.Selected {
			t.Errorf("expected %d score columns, got %d", res.Model.Selected, cols)
		}
	})

	t.Run("BothTreesCoverAllStates", func(t *testing.T) {
		if got := res.Agglomerative.NumLeaves(); got != 3 {
			t.Errorf("agglomerative tree has %d leaves, want 3", got)
		}
		if got := res.Divisive.NumLeaves(); got != 3 {
			t.Errorf("divisive tree has %d leaves, want 3", got)
		}
		if !res.Agglomerative.Monotone() {
			t.Error("complete-linkage dendrogram must be monotone")
		}
		if !res.Divisive.Monotone() {
			t.Error("divisive dendrogram must be monotone")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		again, err := Run(cfg, nil)
		if err != nil {
			t.Fatalf("second Run failed: %v", err)
		}
		if !reflect.DeepEqual(res.Agglomerative.Merges, again.Agglomerative.Merges) {
			t.Error("agglomerative merges changed across runs")
		}
		if !reflect.DeepEqual(res.Divisive.Merges, again.Divisive.Merges) {
			t.Error("divisive merges changed across runs")
		}
		rows, cols := res.Scores.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if math.Abs(res.Scores.At(i, j)-again.Scores.At(i, j)) > 1e-12 {
					t.Fatalf("scores changed across runs at (%d,%d)", i, j)
				}
			}
		}
	})
}

func TestRunFailures(t *testing.T) {
	t.Run("MissingTractFile", func(t *testing.T) {
		cfg := testRunConfig(t)
		cfg.TractFile = filepath.Join(t.TempDir(), "nope.csv")
		if _, err := Run(cfg, nil); err == nil {
			t.Error("expected error for missing tract file")
		}
	})

	t.Run("BadLinkage", func(t *testing.T) {
		cfg := testRunConfig(t)
		cfg.Linkage = "ward"
		if _, err := Run(cfg, nil); err == nil {
			t.Error("expected error for unsupported linkage")
		}
	})

	t.Run("DisjointStateKeys", func(t *testing.T) {
		// Returns keyed by abbreviation never match the demographic table's
		// full names: the join drops every row, which must surface as an
		// error instead of a crash further down.
		cfg := testRunConfig(t)
		abbrev := `year,state,candidate,party,candidatevotes
2016,AL,Alice Ames,red,700
2016,AL,Bob Barker,blue,300
2016,VT,Alice Ames,red,250
2016,VT,Bob Barker,blue,750
`
		cfg.ElectionFile = writeFile(t, t.TempDir(), "abbrev.csv", abbrev)
		if _, err := Run(cfg, nil); err == nil {
			t.Error("expected error when no state keys survive the join")
		}
	})
}
