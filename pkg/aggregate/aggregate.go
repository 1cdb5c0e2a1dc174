// Package aggregate collapses cleaned tract rows to county or state
// granularity. The order of operations is fixed by the additive semantics of
// the cleaned table: sum absolute counts first, then divide by the summed
// population to restore proportions and per-capita averages. Summing
// pre-normalized percentages across unevenly sized tracts would be invalid.
package aggregate

import (
	"sort"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// Level selects the aggregation granularity.
type Level int

const (
	County Level = iota
	State
)

func (l Level) String() string {
	switch l {
	case County:
		return "county"
	case State:
		return "state"
	default:
		return "unknown"
	}
}

// SumBy groups tract rows by the level key and sums every numeric column.
// Output rows are ordered by key for deterministic downstream results.
func SumBy(t *models.TractTable, level Level) *models.RegionTable {
	keyOf := func(i int) string { return t.Counties[i] }
	if level == State {
		keyOf = func(i int) string { return t.States[i] }
	}

	sums := make(map[string][]float64)
	for i, row := range t.Values {
		k := keyOf(i)
		acc, ok := sums[k]
		if !ok {
			acc = make([]float64, len(t.Columns))
			sums[k] = acc
		}
		for j, v := range row {
			acc[j] += v
		}
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &models.RegionTable{
		Keys:    keys,
		Columns: append([]string(nil), t.Columns...),
		Values:  make([][]float64, len(keys)),
	}
	for i, k := range keys {
		out.Values[i] = sums[k]
	}
	return out
}

// Normalize divides every column except total population by total
// population, in place, turning summed counts back into proportions and
// weighted sums back into per-capita averages.
func Normalize(r *models.RegionTable, totalPopColumn string) error {
	popIdx := r.ColumnIndex(totalPopColumn)
	if popIdx < 0 {
		return models.ValidationError{Field: "total_pop_column", Message: "column not found", Value: totalPopColumn}
	}
	for i, row := range r.Values {
		pop := row[popIdx]
		if pop <= 0 {
			return models.ValidationError{
				Field:   totalPopColumn,
				Message: "aggregated population must be positive",
				Value:   r.Keys[i],
			}
		}
		for j := range row {
			if j == popIdx {
				continue
			}
			row[j] /= pop
		}
	}
	return nil
}

// Aggregate runs sum-then-normalize at the requested level.
func Aggregate(t *models.TractTable, level Level, totalPopColumn string) (*models.RegionTable, error) {
	r := SumBy(t, level)
	if err := Normalize(r, totalPopColumn); err != nil {
		return nil, err
	}
	return r, nil
}
