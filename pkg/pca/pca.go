// Package pca standardizes the pruned state feature matrix and projects it
// onto its principal components. The number of retained components is a
// configurable policy: keep components whose individual explained-variance
// share clears a floor (the default), or keep the minimal prefix reaching a
// cumulative target.
package pca

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// SelectionRule names a component-selection policy.
type SelectionRule string

const (
	// MinShare keeps every component individually explaining at least
	// Config.MinShare of total variance.
	MinShare SelectionRule = "min-share"
	// CumTarget keeps the minimal prefix of components whose cumulative
	// share reaches Config.CumTarget.
	CumTarget SelectionRule = "cum-target"
)

// Config controls component selection.
type Config struct {
	Rule      SelectionRule `json:"rule"`
	MinShare  float64       `json:"min_share"`
	CumTarget float64       `json:"cum_target"`
}

// DefaultConfig keeps components individually explaining >= 5% of variance.
func DefaultConfig() Config {
	return Config{
		Rule:      MinShare,
		MinShare:  0.05,
		CumTarget: 0.80,
	}
}

// Model is a fitted principal component decomposition of the standardized
// feature matrix.
type Model struct {
	Columns   []string  `json:"columns"`
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
	Variances []float64 `json:"variances"`
	Shares    []float64 `json:"shares"`   // per-component explained-variance share
	Selected  int       `json:"selected"` // components retained by the policy

	vectors *mat.Dense // d x d, columns are component loadings
}

// Fit standardizes the feature matrix of sv and computes its principal
// components.
func Fit(sv *models.StateVectors, cfg Config) (*Model, error) {
	n := sv.NumRows()
	d := len(sv.Columns)
	if n < 2 {
		return nil, models.ValidationError{Field: "values", Message: fmt.Sprintf("need at least 2 rows, got %d", n)}
	}
	if d == 0 {
		return nil, models.ValidationError{Field: "columns", Message: "no feature columns"}
	}

	m := &Model{
		Columns: append([]string(nil), sv.Columns...),
		Means:   make([]float64, d),
		Stds:    make([]float64, d),
	}

	var degenerate []string
	for j := 0; j < d; j++ {
		col := make([]float64, n)
		for i, row := range sv.Values {
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		m.Means[j] = mean
		m.Stds[j] = std
		if std == 0 {
			degenerate = append(degenerate, sv.Columns[j])
		}
	}
	if len(degenerate) > 0 {
		return nil, models.DegenerateCorrelationError{Columns: degenerate}
	}

	x := m.Standardize(sv.Values)

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	m.vectors = &mat.Dense{}
	pc.VectorsTo(m.vectors)
	m.Variances = pc.VarsTo(nil)

	total := 0.0
	for _, v := range m.Variances {
		total += v
	}
	m.Shares = make([]float64, len(m.Variances))
	for i, v := range m.Variances {
		m.Shares[i] = v / total
	}

	m.Selected = selectComponents(m.Shares, cfg)
	return m, nil
}

// selectComponents applies the configured policy. At least one component is
// always retained.
func selectComponents(shares []float64, cfg Config) int {
	k := 0
	switch cfg.Rule {
	case CumTarget:
		cum := 0.0
		for _, s := range shares {
			k++
			cum += s
			if cum >= cfg.CumTarget {
				break
			}
		}
	default: // MinShare
		for _, s := range shares {
			if s < cfg.MinShare {
				break
			}
			k++
		}
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Standardize maps raw feature rows into the model's zero-mean,
// unit-variance space.
func (m *Model) Standardize(values [][]float64) *mat.Dense {
	n := len(values)
	d := len(m.Columns)
	x := mat.NewDense(n, d, nil)
	for i, row := range values {
		for j := 0; j < d; j++ {
			x.Set(i, j, (row[j]-m.Means[j])/m.Stds[j])
		}
	}
	return x
}

// Transform projects raw feature rows onto the first k components. k <= 0
// means the policy-selected count.
func (m *Model) Transform(values [][]float64, k int) *mat.Dense {
	if k <= 0 {
		k = m.Selected
	}
	x := m.Standardize(values)
	d := len(m.Columns)
	v := m.vectors.Slice(0, d, 0, k)
	var scores mat.Dense
	scores.Mul(x, v)
	return &scores
}

// Reconstruct maps full-rank scores back to the standardized feature space.
// With all components retained this inverts Transform up to floating-point
// error.
func (m *Model) Reconstruct(scores *mat.Dense) *mat.Dense {
	var x mat.Dense
	x.Mul(scores, m.vectors.T())
	return &x
}

// CumulativeShare returns the total variance share of the first k
// components.
func (m *Model) CumulativeShare(k int) float64 {
	if k > len(m.Shares) {
		k = len(m.Shares)
	}
	cum := 0.0
	for i := 0; i < k; i++ {
		cum += m.Shares[i]
	}
	return cum
}

// Loadings returns the loading of each input column on component k.
func (m *Model) Loadings(k int) ([]float64, error) {
	_, cols := m.vectors.Dims()
	if k < 0 || k >= cols {
		return nil, models.ValidationError{Field: "component", Message: fmt.Sprintf("component %d out of range [0,%d)", k, cols)}
	}
	d := len(m.Columns)
	out := make([]float64, d)
	for j := 0; j < d; j++ {
		out[j] = m.vectors.At(j, k)
	}
	return out, nil
}

// NumComponents returns the full component count of the decomposition.
func (m *Model) NumComponents() int { return len(m.Variances) }
