// Package census loads the raw per-tract demographic survey and cleans it:
// it drops error-margin columns, excludes out-of-scope territories and empty
// tracts, imputes missing values through an ordered chain of fallback
// resolvers, converts percentage fields to absolute person counts, and
// population-weights per-capita columns so that later aggregation can sum
// them and divide once.
package census

import (
	"fmt"
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// Config describes the shape of the tract survey file.
type Config struct {
	StateColumn    string `json:"state_column"`
	CountyColumn   string `json:"county_column"`
	TotalPopColumn string `json:"total_pop_column"`

	// DropColumns are removed before analysis (identifier codes and
	// error-margin columns).
	DropColumns []string `json:"drop_columns"`

	// ExcludeStates are territories outside the electoral analysis.
	ExcludeStates []string `json:"exclude_states"`

	// PercentColumns are encoded as percentages of total population and get
	// converted to absolute counts.
	PercentColumns []string `json:"percent_columns"`

	// WeightedColumns are per-capita or per-person averages. They are
	// multiplied by total population before aggregation so that dividing the
	// aggregated sum by aggregated population recovers the correct average
	// instead of an average of averages.
	WeightedColumns []string `json:"weighted_columns"`
}

// DefaultConfig returns the column layout of the ACS census tract extract.
func DefaultConfig() Config {
	return Config{
		StateColumn:    "State",
		CountyColumn:   "County",
		TotalPopColumn: "TotalPop",
		DropColumns:    []string{"CensusTract", "IncomeErr", "IncomePerCapErr"},
		ExcludeStates:  []string{"Puerto Rico"},
		PercentColumns: []string{
			"Hispanic", "White", "Black", "Native", "Asian", "Pacific",
			"Poverty", "ChildPoverty",
			"Professional", "Service", "Office", "Construction", "Production",
			"Drive", "Carpool", "Transit", "Walk", "OtherTransp", "WorkAtHome",
			"PrivateWork", "PublicWork", "SelfEmployed", "FamilyWork",
			"Unemployment",
		},
		WeightedColumns: []string{"Income", "IncomePerCap", "MeanCommute"},
	}
}

// CleanReport summarizes what loading and cleaning did to the table. It is
// carried through the pipeline result so the missing-value situation can be
// inspected instead of silently papered over.
type CleanReport struct {
	RowsLoaded      int            `json:"rows_loaded"`
	RowsExcluded    int            `json:"rows_excluded"`
	MissingBefore   map[string]int `json:"missing_before"`
	ImputedByCounty map[string]int `json:"imputed_by_county"`
	ImputedByState  map[string]int `json:"imputed_by_state"`
}

// TotalImputed returns the number of cells filled across both passes.
func (r *CleanReport) TotalImputed() int {
	total := 0
	for _, n := range r.ImputedByCounty {
		total += n
	}
	for _, n := range r.ImputedByState {
		total += n
	}
	return total
}

// LoadTracts reads the tract survey CSV into a TractTable. Territory rows
// and zero-population tracts are filtered out here; missing numeric cells
// come through as NaN for the cleaner.
func LoadTracts(path string, cfg Config) (*models.TractTable, *CleanReport, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("tract file does not exist: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tract file: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DefaultType(series.Float),
		dataframe.WithTypes(map[string]series.Type{
			cfg.StateColumn:  series.String,
			cfg.CountyColumn: series.String,
		}),
	)
	if df.Err != nil {
		return nil, nil, fmt.Errorf("failed to parse tract CSV: %w", df.Err)
	}

	if err := validateColumns(df.Names(), cfg); err != nil {
		return nil, nil, err
	}

	report := &CleanReport{
		RowsLoaded:      df.Nrow(),
		ImputedByCounty: make(map[string]int),
		ImputedByState:  make(map[string]int),
	}

	// Exclude territories, then structurally empty tracts. Chained filters
	// AND together.
	for _, territory := range cfg.ExcludeStates {
		df = df.Filter(dataframe.F{Colname: cfg.StateColumn, Comparator: series.Neq, Comparando: territory})
		if df.Err != nil {
			return nil, nil, fmt.Errorf("failed to filter territory %q: %w", territory, df.Err)
		}
	}
	df = df.Filter(dataframe.F{Colname: cfg.TotalPopColumn, Comparator: series.Greater, Comparando: 0.0})
	if df.Err != nil {
		return nil, nil, fmt.Errorf("failed to filter empty tracts: %w", df.Err)
	}
	report.RowsExcluded = report.RowsLoaded - df.Nrow()

	drop := make(map[string]bool, len(cfg.DropColumns))
	for _, c := range cfg.DropColumns {
		drop[c] = true
	}

	table := &models.TractTable{}
	for _, name := range df.Names() {
		if name == cfg.StateColumn || name == cfg.CountyColumn || drop[name] {
			continue
		}
		table.Columns = append(table.Columns, name)
	}

	states := df.Col(cfg.StateColumn).Records()
	counties := df.Col(cfg.CountyColumn).Records()
	numeric := make([][]float64, len(table.Columns))
	for j, name := range table.Columns {
		numeric[j] = df.Col(name).Float()
	}

	n := df.Nrow()
	table.States = make([]string, n)
	table.Counties = make([]string, n)
	table.Values = make([][]float64, n)
	for i := 0; i < n; i++ {
		table.States[i] = states[i]
		table.Counties[i] = models.CountyKey(states[i], counties[i])
		row := make([]float64, len(table.Columns))
		for j := range table.Columns {
			row[j] = numeric[j][i]
		}
		table.Values[i] = row
	}

	report.MissingBefore = table.CountMissing()
	return table, report, nil
}

// Clean runs the full cleaning contract on a loaded table: impute missing
// cells (county mean, then state mean), validate percentage ranges, convert
// percentages to integral counts, and population-weight the per-capita
// columns. The input table is not modified.
func Clean(t *models.TractTable, cfg Config, report *CleanReport) (*models.TractTable, error) {
	out := t.Clone()

	if err := imputeTable(out, report); err != nil {
		return nil, err
	}

	popIdx := out.ColumnIndex(cfg.TotalPopColumn)
	if popIdx < 0 {
		return nil, models.ValidationError{Field: "total_pop_column", Message: "column not found", Value: cfg.TotalPopColumn}
	}

	if err := validatePercentRanges(out, cfg); err != nil {
		return nil, err
	}

	// Percentage of population -> nearest-integer person count.
	for _, name := range cfg.PercentColumns {
		j := out.ColumnIndex(name)
		if j < 0 {
			continue
		}
		for _, row := range out.Values {
			row[j] = math.Round(row[j] / 100 * row[popIdx])
		}
	}

	// Averages -> population-weighted totals.
	for _, name := range cfg.WeightedColumns {
		j := out.ColumnIndex(name)
		if j < 0 {
			continue
		}
		for _, row := range out.Values {
			row[j] *= row[popIdx]
		}
	}

	return out, nil
}

func validateColumns(names []string, cfg Config) error {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}

	var errs models.ValidationErrors
	for _, required := range []string{cfg.StateColumn, cfg.CountyColumn, cfg.TotalPopColumn} {
		if !have[required] {
			errs = append(errs, models.ValidationError{Field: "columns", Message: "required column missing", Value: required})
		}
	}
	for _, name := range cfg.PercentColumns {
		if !have[name] {
			errs = append(errs, models.ValidationError{Field: "percent_columns", Message: "percentage column missing", Value: name})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePercentRanges(t *models.TractTable, cfg Config) error {
	var errs models.ValidationErrors
	for _, name := range cfg.PercentColumns {
		j := t.ColumnIndex(name)
		if j < 0 {
			continue
		}
		for i, row := range t.Values {
			if row[j] < 0 || row[j] > 100 {
				errs = append(errs, models.ValidationError{
					Field:   name,
					Message: fmt.Sprintf("percentage out of range in row %d", i),
					Value:   fmt.Sprintf("%.4f", row[j]),
				})
				break
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
