package census

import (
	"math"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// A resolver fills missing cells of one column from the mean of some group
// of rows. Resolvers are applied in order: whatever the first leaves
// missing, the next one tries. Cells still missing after the whole chain are
// a MissingDataError.
type resolver struct {
	label string
	// key maps a row to its fallback group.
	key func(t *models.TractTable, row int) string
	// counts receives the number of cells filled, per column.
	counts func(r *CleanReport) map[string]int
}

func imputeChain() []resolver {
	return []resolver{
		{
			label:  "county mean",
			key:    func(t *models.TractTable, row int) string { return t.Counties[row] },
			counts: func(r *CleanReport) map[string]int { return r.ImputedByCounty },
		},
		{
			label:  "state mean",
			key:    func(t *models.TractTable, row int) string { return t.States[row] },
			counts: func(r *CleanReport) map[string]int { return r.ImputedByState },
		},
	}
}

// imputeTable fills every NaN cell in place, column by column, walking the
// resolver chain. report may be nil.
func imputeTable(t *models.TractTable, report *CleanReport) error {
	for j := range t.Columns {
		if err := imputeColumn(t, j, report); err != nil {
			return err
		}
	}
	return nil
}

func imputeColumn(t *models.TractTable, col int, report *CleanReport) error {
	missing := missingRows(t, col)
	if len(missing) == 0 {
		return nil
	}

	for _, res := range imputeChain() {
		if len(missing) == 0 {
			break
		}
		means := groupMeans(t, col, res.key)
		still := missing[:0]
		filled := 0
		for _, i := range missing {
			m, ok := means[res.key(t, i)]
			if !ok {
				still = append(still, i)
				continue
			}
			t.Values[i][col] = m
			filled++
		}
		missing = still
		if report != nil && filled > 0 {
			res.counts(report)[t.Columns[col]] += filled
		}
	}

	if len(missing) > 0 {
		return models.MissingDataError{
			Column: t.Columns[col],
			State:  t.States[missing[0]],
			Rows:   len(missing),
		}
	}
	return nil
}

func missingRows(t *models.TractTable, col int) []int {
	var rows []int
	for i, row := range t.Values {
		if math.IsNaN(row[col]) {
			rows = append(rows, i)
		}
	}
	return rows
}

// groupMeans computes the mean of the observed values of one column within
// each group. Groups with no observed values get no entry.
func groupMeans(t *models.TractTable, col int, key func(*models.TractTable, int) string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, row := range t.Values {
		if math.IsNaN(row[col]) {
			continue
		}
		k := key(t, i)
		sums[k] += row[col]
		counts[k]++
	}
	means := make(map[string]float64, len(sums))
	for k, s := range sums {
		means[k] = s / float64(counts[k])
	}
	return means
}
