// Package models defines the data structures shared by every stage of the
// state demographic clustering pipeline: the columnar tract and region
// tables, the per-state election records, the joined state feature vectors,
// and the structured error types the stages report.
package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ===== TABLES =====

// TractTable is the columnar form of the per-tract census survey. Each row is
// one census tract; States and Counties carry the identifier columns, Values
// carries the numeric columns named by Columns. A missing cell is NaN until
// the cleaner has run.
type TractTable struct {
	States   []string    `json:"states"`   // state name per row
	Counties []string    `json:"counties"` // composite "state|county" key per row
	Columns  []string    `json:"columns"`  // numeric column names
	Values   [][]float64 `json:"values"`   // row-major, aligned with Columns
}

// NumRows returns the number of tract rows.
func (t *TractTable) NumRows() int { return len(t.Values) }

// ColumnIndex returns the position of the named numeric column, or -1.
func (t *TractTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy. Stages treat their input as immutable and work
// on copies.
func (t *TractTable) Clone() *TractTable {
	c := &TractTable{
		States:   append([]string(nil), t.States...),
		Counties: append([]string(nil), t.Counties...),
		Columns:  append([]string(nil), t.Columns...),
		Values:   make([][]float64, len(t.Values)),
	}
	for i, row := range t.Values {
		c.Values[i] = append([]float64(nil), row...)
	}
	return c
}

// CountMissing returns the number of NaN cells per column name.
func (t *TractTable) CountMissing() map[string]int {
	counts := make(map[string]int)
	for _, row := range t.Values {
		for j, v := range row {
			if math.IsNaN(v) {
				counts[t.Columns[j]]++
			}
		}
	}
	return counts
}

// CountyKey builds the composite county key. County names are not unique
// across states, so the state name is always part of the key.
func CountyKey(state, county string) string {
	return state + "|" + county
}

// RegionTable is a tract table collapsed to county or state granularity.
// Keys holds the group key of each row (a composite county key or a state
// name, depending on the aggregation level).
type RegionTable struct {
	Keys    []string    `json:"keys"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// NumRows returns the number of region rows.
func (r *RegionTable) NumRows() int { return len(r.Values) }

// ColumnIndex returns the position of the named column, or -1.
func (r *RegionTable) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// RowByKey returns the row for the given key, or nil.
func (r *RegionTable) RowByKey(key string) []float64 {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i]
		}
	}
	return nil
}

// ===== ELECTION =====

// ElectionRecord holds one state's top-two vote shares for the target
// election year and the derived winner label. Shares are fractions in [0,1]
// of the state's total vote, so ShareA+ShareB need not reach 1.
type ElectionRecord struct {
	State  string  `json:"state"`
	ShareA float64 `json:"share_a"`
	ShareB float64 `json:"share_b"`
	LeansA bool    `json:"leans_a"`
}

// StateVectors is the unit of analysis for pruning, reduction and
// clustering: one demographic feature vector per state plus the joined
// election label.
type StateVectors struct {
	States  []string    `json:"states"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
	LeansA  []bool      `json:"leans_a"`
}

// NumRows returns the number of states.
func (s *StateVectors) NumRows() int { return len(s.Values) }

// Select returns a copy of the vectors restricted to the named columns, in
// the given order.
func (s *StateVectors) Select(cols []string) (*StateVectors, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = -1
		for j, have := range s.Columns {
			if have == c {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, ValidationError{Field: "columns", Message: "unknown column", Value: c}
		}
	}
	out := &StateVectors{
		States:  append([]string(nil), s.States...),
		Columns: append([]string(nil), cols...),
		Values:  make([][]float64, len(s.Values)),
		LeansA:  append([]bool(nil), s.LeansA...),
	}
	for i, row := range s.Values {
		sel := make([]float64, len(idx))
		for k, j := range idx {
			sel[k] = row[j]
		}
		out.Values[i] = sel
	}
	return out, nil
}

// ===== ERROR TYPES =====

// ValidationError represents a structured input-shape error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("validation error in field '%s': %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(ve), ve[0].Error(), len(ve)-1)
}

// MissingDataError reports a cell that stayed missing after every imputation
// fallback level. With real census input this means an entire state has no
// observed value for the column.
type MissingDataError struct {
	Column string `json:"column"`
	State  string `json:"state"`
	Rows   int    `json:"rows"`
}

func (e MissingDataError) Error() string {
	return fmt.Sprintf("column %q cannot be imputed for state %q: no observed values (%d rows affected)", e.Column, e.State, e.Rows)
}

// JoinMismatchError records state keys present on only one side of the
// demographic/election join. It is surfaced as a warning; the mismatched
// rows are dropped (inner join semantics), not fatal.
type JoinMismatchError struct {
	MissingElection    []string `json:"missing_election"`    // states with demographics but no returns
	MissingDemographic []string `json:"missing_demographic"` // states with returns but no demographics
}

func (e JoinMismatchError) Error() string {
	var parts []string
	if len(e.MissingElection) > 0 {
		parts = append(parts, fmt.Sprintf("no election returns for: %s", strings.Join(e.MissingElection, ", ")))
	}
	if len(e.MissingDemographic) > 0 {
		parts = append(parts, fmt.Sprintf("no demographics for: %s", strings.Join(e.MissingDemographic, ", ")))
	}
	if len(parts) == 0 {
		return "join mismatch: none"
	}
	return "join mismatch: " + strings.Join(parts, "; ")
}

// Empty reports whether both sides joined cleanly.
func (e JoinMismatchError) Empty() bool {
	return len(e.MissingElection) == 0 && len(e.MissingDemographic) == 0
}

// DegenerateCorrelationError reports columns whose variance is zero, which
// would leave the correlation matrix undefined. The pruner excludes constant
// columns before correlating; this error is returned only when nothing
// non-constant remains.
type DegenerateCorrelationError struct {
	Columns []string `json:"columns"`
}

func (e DegenerateCorrelationError) Error() string {
	cols := append([]string(nil), e.Columns...)
	sort.Strings(cols)
	return fmt.Sprintf("correlation matrix undefined: zero-variance columns: %s", strings.Join(cols, ", "))
}
