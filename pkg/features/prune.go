// Package features removes redundant variables from the state feature
// matrix before dimensionality reduction: constant columns (which leave the
// correlation matrix undefined) and one member of every pairwise highly
// correlated pair, iterating until no pair exceeds the threshold.
package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// DefaultThreshold is the absolute pairwise correlation above which one of
// the two variables is dropped.
const DefaultThreshold = 0.9

// Dropped records one pruning decision.
type Dropped struct {
	Column      string  `json:"column"`        // variable removed
	Partner     string  `json:"partner"`       // the other member of the offending pair
	Correlation float64 `json:"correlation"`   // the pair's correlation at removal time
	MeanAbsCorr float64 `json:"mean_abs_corr"` // removed variable's mean |corr| with all others
}

// Result summarizes a pruning run.
type Result struct {
	Kept     []string  `json:"kept"`
	Dropped  []Dropped `json:"dropped"`
	Constant []string  `json:"constant"` // zero-variance columns excluded up front
}

// Prune applies correlation-based redundancy reduction to the numeric
// feature columns of sv. The label and identifier data ride along untouched.
// Running Prune on its own output removes nothing further.
func Prune(sv *models.StateVectors, threshold float64) (*models.StateVectors, *Result, error) {
	if sv.NumRows() == 0 {
		return nil, nil, models.ValidationError{Field: "values", Message: "no rows to correlate"}
	}

	result := &Result{}

	cols := append([]string(nil), sv.Columns...)
	cols, constant := splitConstant(sv, cols)
	result.Constant = constant
	if len(cols) == 0 {
		return nil, nil, models.DegenerateCorrelationError{Columns: constant}
	}

	for len(cols) > 1 {
		x, err := matrixFor(sv, cols)
		if err != nil {
			return nil, nil, err
		}
		corr := mat.NewSymDense(len(cols), nil)
		stat.CorrelationMatrix(corr, x, nil)

		i, j, best := worstPair(corr)
		if best <= threshold {
			break
		}

		// Drop the member with the larger mean absolute correlation to all
		// other variables. Ties break toward the lower index.
		mi := meanAbsCorr(corr, i)
		mj := meanAbsCorr(corr, j)
		drop, keep, meanAbs := i, j, mi
		if mj > mi {
			drop, keep, meanAbs = j, i, mj
		}

		result.Dropped = append(result.Dropped, Dropped{
			Column:      cols[drop],
			Partner:     cols[keep],
			Correlation: corr.At(i, j),
			MeanAbsCorr: meanAbs,
		})
		cols = append(cols[:drop], cols[drop+1:]...)
	}

	result.Kept = append([]string(nil), cols...)
	pruned, err := sv.Select(cols)
	if err != nil {
		return nil, nil, err
	}
	return pruned, result, nil
}

// splitConstant partitions columns into non-constant and constant sets,
// preserving order.
func splitConstant(sv *models.StateVectors, cols []string) (kept, constant []string) {
	for _, name := range cols {
		j := -1
		for k, c := range sv.Columns {
			if c == name {
				j = k
				break
			}
		}
		first := sv.Values[0][j]
		isConst := true
		for _, row := range sv.Values {
			if row[j] != first {
				isConst = false
				break
			}
		}
		if isConst {
			constant = append(constant, name)
		} else {
			kept = append(kept, name)
		}
	}
	return kept, constant
}

func matrixFor(sv *models.StateVectors, cols []string) (*mat.Dense, error) {
	sel, err := sv.Select(cols)
	if err != nil {
		return nil, err
	}
	x := mat.NewDense(len(sel.Values), len(cols), nil)
	for i, row := range sel.Values {
		x.SetRow(i, row)
	}
	return x, nil
}

// worstPair returns the off-diagonal pair with the largest absolute
// correlation. The scan order (i<j ascending) makes ties deterministic.
func worstPair(corr *mat.SymDense) (int, int, float64) {
	n := corr.SymmetricDim()
	bi, bj, best := -1, -1, 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if a := math.Abs(corr.At(i, j)); a > best {
				bi, bj, best = i, j, a
			}
		}
	}
	return bi, bj, best
}

func meanAbsCorr(corr *mat.SymDense, i int) float64 {
	n := corr.SymmetricDim()
	if n < 2 {
		return 0
	}
	sum := 0.0
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		sum += math.Abs(corr.At(i, j))
	}
	return sum / float64(n-1)
}
