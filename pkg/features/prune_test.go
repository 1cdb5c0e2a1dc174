package features

import (
	"errors"
	"testing"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// vectorsWith builds StateVectors from columns of equal length.
func vectorsWith(cols []string, data ...[]float64) *models.StateVectors {
	n := len(data[0])
	sv := &models.StateVectors{
		Columns: cols,
		Values:  make([][]float64, n),
		LeansA:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		sv.States = append(sv.States, "s")
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = data[j][i]
		}
		sv.Values[i] = row
	}
	return sv
}

func TestPrune(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{2, 4, 6, 8, 10, 12}    // exact linear copy of a
	c := []float64{5, 1, 4, 2, 6, 3}      // unrelated
	sv := vectorsWith([]string{"a", "b", "c"}, a, b, c)

	pruned, result, err := Prune(sv, 0.9)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	t.Run("RemovesOneOfEachCorrelatedPair", func(t *testing.T) {
		if len(result.Dropped) != 1 {
			t.Fatalf("expected 1 dropped column, got %d", len(result.Dropped))
		}
		if len(pruned.Columns) != 2 {
			t.Errorf("expected 2 kept columns, got %d", len(pruned.Columns))
		}
		d := result.Dropped[0]
		if d.Correlation < 0.999 {
			t.Errorf("expected near-perfect correlation recorded, got %v", d.Correlation)
		}
		if (d.Column != "a" && d.Column != "b") || d.Partner == d.Column {
			t.Errorf("unexpected pruning decision: %+v", d)
		}
	})

	t.Run("KeepsUncorrelatedColumns", func(t *testing.T) {
		found := false
		for _, k := range result.Kept {
			if k == "c" {
				found = true
			}
		}
		if !found {
			t.Error("uncorrelated column c should survive pruning")
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		again, result2, err := Prune(pruned, 0.9)
		if err != nil {
			t.Fatalf("second Prune failed: %v", err)
		}
		if len(result2.Dropped) != 0 {
			t.Errorf("pruning its own output should drop nothing, dropped %d", len(result2.Dropped))
		}
		if len(again.Columns) != len(pruned.Columns) {
			t.Errorf("column count changed on second run: %d vs %d", len(again.Columns), len(pruned.Columns))
		}
	})
}

func TestPruneDropsHigherMeanCorrelation(t *testing.T) {
	// a and b are identical; a also tracks c, so a has the larger mean
	// absolute correlation and must be the one dropped.
	a := []float64{1, 2, 3, 4, 5, 7}
	b := []float64{2, 4, 6, 8, 10, 14}
	c := []float64{1.1, 1.9, 3.2, 3.9, 5.1, 6.8}
	sv := vectorsWith([]string{"a", "b", "c"}, a, b, c)

	_, result, err := Prune(sv, 0.9)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(result.Dropped) == 0 {
		t.Fatal("expected at least one drop")
	}
	first := result.Dropped[0]
	if first.MeanAbsCorr <= 0 {
		t.Errorf("mean absolute correlation should be recorded, got %v", first.MeanAbsCorr)
	}
}

func TestPruneConstantColumns(t *testing.T) {
	t.Run("ExcludedBeforeCorrelating", func(t *testing.T) {
		sv := vectorsWith([]string{"flat", "x", "y"},
			[]float64{3, 3, 3, 3},
			[]float64{1, 2, 3, 4},
			[]float64{4, 1, 3, 2},
		)
		pruned, result, err := Prune(sv, 0.9)
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if len(result.Constant) != 1 || result.Constant[0] != "flat" {
			t.Errorf("expected constant column flat excluded, got %v", result.Constant)
		}
		if got := len(pruned.Columns); got != 2 {
			t.Errorf("expected 2 columns after exclusion, got %d", got)
		}
	})

	t.Run("AllConstantIsDegenerate", func(t *testing.T) {
		sv := vectorsWith([]string{"flat"}, []float64{3, 3, 3})
		_, _, err := Prune(sv, 0.9)
		var dce models.DegenerateCorrelationError
		if !errors.As(err, &dce) {
			t.Fatalf("expected DegenerateCorrelationError, got %v", err)
		}
	})
}

func TestPruneEmptyInput(t *testing.T) {
	// A fully mismatched join leaves a table with columns but no rows; that
	// must come back as an error, not a panic.
	sv := &models.StateVectors{Columns: []string{"a", "b"}}
	_, _, err := Prune(sv, 0.9)
	var verr models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for zero-row input, got %v", err)
	}
}
