package census

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// testConfig returns a reduced column layout for the synthetic fixtures.
func testConfig() Config {
	return Config{
		StateColumn:     "State",
		CountyColumn:    "County",
		TotalPopColumn:  "TotalPop",
		ExcludeStates:   []string{"Puerto Rico"},
		PercentColumns:  []string{"Poverty"},
		WeightedColumns: []string{"IncomePerCap"},
	}
}

func writeFixture(t *testing.T, csv string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracts.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestLoadTracts(t *testing.T) {
	csv := `State,County,TotalPop,Poverty,IncomePerCap
Alabama,Autauga,1000,10,20000
Alabama,Autauga,0,10,20000
Puerto Rico,San Juan,5000,30,9000
Alabama,Baldwin,2000,,25000
`
	table, report, err := LoadTracts(writeFixture(t, csv), testConfig())
	if err != nil {
		t.Fatalf("LoadTracts failed: %v", err)
	}

	t.Run("FiltersTerritoriesAndEmptyTracts", func(t *testing.T) {
		if table.NumRows() != 2 {
			t.Errorf("expected 2 rows after filtering, got %d", table.NumRows())
		}
		if report.RowsLoaded != 4 {
			t.Errorf("expected 4 rows loaded, got %d", report.RowsLoaded)
		}
		if report.RowsExcluded != 2 {
			t.Errorf("expected 2 rows excluded, got %d", report.RowsExcluded)
		}
		for _, state := range table.States {
			if state == "Puerto Rico" {
				t.Error("territory rows should be excluded")
			}
		}
	})

	t.Run("BuildsCompositeCountyKeys", func(t *testing.T) {
		want := models.CountyKey("Alabama", "Autauga")
		if table.Counties[0] != want {
			t.Errorf("expected county key %q, got %q", want, table.Counties[0])
		}
	})

	t.Run("MarksMissingCellsAsNaN", func(t *testing.T) {
		if report.MissingBefore["Poverty"] != 1 {
			t.Errorf("expected 1 missing Poverty cell, got %d", report.MissingBefore["Poverty"])
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, _, err := LoadTracts(filepath.Join(t.TempDir(), "nope.csv"), testConfig()); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("MissingRequiredColumn", func(t *testing.T) {
		path := writeFixture(t, "State,County,TotalPop\nAlabama,Autauga,10\n")
		_, _, err := LoadTracts(path, testConfig())
		var verrs models.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected ValidationErrors, got %v", err)
		}
	})
}

func TestImputation(t *testing.T) {
	t.Run("CountyMeanFirst", func(t *testing.T) {
		csv := `State,County,TotalPop,Poverty,IncomePerCap
Alabama,Autauga,1000,10,20000
Alabama,Autauga,1000,20,22000
Alabama,Autauga,1000,,21000
`
		table, report, err := LoadTracts(writeFixture(t, csv), testConfig())
		if err != nil {
			t.Fatalf("LoadTracts failed: %v", err)
		}
		cleaned, err := Clean(table, testConfig(), report)
		if err != nil {
			t.Fatalf("Clean failed: %v", err)
		}

		// County mean of Poverty is 15%; times 1000 people is 150.
		j := cleaned.ColumnIndex("Poverty")
		if got := cleaned.Values[2][j]; got != 150 {
			t.Errorf("expected county-mean imputation to yield 150, got %v", got)
		}
		if report.ImputedByCounty["Poverty"] != 1 {
			t.Errorf("expected 1 county-mean fill, got %d", report.ImputedByCounty["Poverty"])
		}
		if report.ImputedByState["Poverty"] != 0 {
			t.Errorf("expected no state-mean fills, got %d", report.ImputedByState["Poverty"])
		}
	})

	t.Run("StateMeanFallback", func(t *testing.T) {
		// The whole Baldwin county is missing Poverty, so the county pass
		// has nothing to average and the state pass must take over.
		csv := `State,County,TotalPop,Poverty,IncomePerCap
Alabama,Autauga,1000,10,20000
Alabama,Autauga,1000,30,22000
Alabama,Baldwin,1000,,21000
`
		table, report, err := LoadTracts(writeFixture(t, csv), testConfig())
		if err != nil {
			t.Fatalf("LoadTracts failed: %v", err)
		}
		cleaned, err := Clean(table, testConfig(), report)
		if err != nil {
			t.Fatalf("Clean failed: %v", err)
		}

		j := cleaned.ColumnIndex("Poverty")
		if got := cleaned.Values[2][j]; got != 200 { // state mean 20% of 1000
			t.Errorf("expected state-mean imputation to yield 200, got %v", got)
		}
		if report.ImputedByState["Poverty"] != 1 {
			t.Errorf("expected 1 state-mean fill, got %d", report.ImputedByState["Poverty"])
		}
	})

	t.Run("UnimputableColumn", func(t *testing.T) {
		csv := `State,County,TotalPop,Poverty,IncomePerCap
Alabama,Autauga,1000,,20000
Alabama,Baldwin,1000,,22000
`
		table, report, err := LoadTracts(writeFixture(t, csv), testConfig())
		if err != nil {
			t.Fatalf("LoadTracts failed: %v", err)
		}
		_, err = Clean(table, testConfig(), report)
		var mde models.MissingDataError
		if !errors.As(err, &mde) {
			t.Fatalf("expected MissingDataError, got %v", err)
		}
		if mde.Column != "Poverty" || mde.State != "Alabama" {
			t.Errorf("unexpected error detail: %+v", mde)
		}
	})
}

func TestClean(t *testing.T) {
	csv := `State,County,TotalPop,Poverty,IncomePerCap
Alabama,Autauga,1000,10.04,20000
Alabama,Baldwin,2000,20.5,25000
`
	cfg := testConfig()
	table, report, err := LoadTracts(writeFixture(t, csv), cfg)
	if err != nil {
		t.Fatalf("LoadTracts failed: %v", err)
	}
	cleaned, err := Clean(table, cfg, report)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	t.Run("PercentagesBecomeIntegralCounts", func(t *testing.T) {
		j := cleaned.ColumnIndex("Poverty")
		want := []float64{100, 410} // round(10.04%*1000), round(20.5%*2000)
		for i, w := range want {
			got := cleaned.Values[i][j]
			if got != w {
				t.Errorf("row %d: expected count %v, got %v", i, w, got)
			}
			if got < 0 || got != math.Trunc(got) {
				t.Errorf("row %d: count must be a non-negative integer, got %v", i, got)
			}
		}
	})

	t.Run("NoMissingValuesRemain", func(t *testing.T) {
		for c, n := range cleaned.CountMissing() {
			if n != 0 {
				t.Errorf("column %s still has %d missing cells", c, n)
			}
		}
	})

	t.Run("PerCapitaColumnsAreWeighted", func(t *testing.T) {
		j := cleaned.ColumnIndex("IncomePerCap")
		if got := cleaned.Values[0][j]; got != 20000*1000 {
			t.Errorf("expected weighted income %v, got %v", 20000.0*1000, got)
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		j := table.ColumnIndex("Poverty")
		if table.Values[0][j] != 10.04 {
			t.Errorf("Clean must not modify its input, got %v", table.Values[0][j])
		}
	})

	t.Run("PercentOutOfRange", func(t *testing.T) {
		bad := writeFixture(t, "State,County,TotalPop,Poverty,IncomePerCap\nAlabama,Autauga,1000,104,20000\n")
		table, report, err := LoadTracts(bad, cfg)
		if err != nil {
			t.Fatalf("LoadTracts failed: %v", err)
		}
		if _, err := Clean(table, cfg, report); err == nil {
			t.Error("expected validation error for percentage above 100")
		}
	})
}
