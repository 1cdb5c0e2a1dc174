// Package election derives per-state vote shares for the target election
// year from the multi-year county-level returns table, labels each state by
// which of the two configured candidates led, and joins the labels onto the
// aggregated demographic table by state name.
package election

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// Config describes the returns file and which contest to extract.
type Config struct {
	Year       int    `json:"year"`
	CandidateA string `json:"candidate_a"`
	CandidateB string `json:"candidate_b"`

	YearColumn      string `json:"year_column"`
	StateColumn     string `json:"state_column"`
	CandidateColumn string `json:"candidate_column"`
	VotesColumn     string `json:"votes_column"`
}

// DefaultConfig targets the 2016 presidential returns.
func DefaultConfig() Config {
	return Config{
		Year:            2016,
		CandidateA:      "Donald Trump",
		CandidateB:      "Hillary Clinton",
		YearColumn:      "year",
		StateColumn:     "state",
		CandidateColumn: "candidate",
		VotesColumn:     "candidatevotes",
	}
}

// LoadReturns reads the returns CSV, filters to the configured year, and
// sums votes by (state, candidate). Multiple rows per candidate within a
// state (counties, split-ticket lines for the same person) collapse here.
func LoadReturns(path string, cfg Config) (map[string]map[string]float64, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("election file does not exist: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open election file: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			cfg.StateColumn:     series.String,
			cfg.CandidateColumn: series.String,
			cfg.YearColumn:      series.Int,
			cfg.VotesColumn:     series.Float,
		}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse election CSV: %w", df.Err)
	}

	for _, required := range []string{cfg.YearColumn, cfg.StateColumn, cfg.CandidateColumn, cfg.VotesColumn} {
		found := false
		for _, name := range df.Names() {
			if name == required {
				found = true
				break
			}
		}
		if !found {
			return nil, models.ValidationError{Field: "columns", Message: "required column missing", Value: required}
		}
	}

	df = df.Filter(dataframe.F{Colname: cfg.YearColumn, Comparator: series.Eq, Comparando: cfg.Year})
	if df.Err != nil {
		return nil, fmt.Errorf("failed to filter year %d: %w", cfg.Year, df.Err)
	}
	if df.Nrow() == 0 {
		return nil, models.ValidationError{
			Field:   cfg.YearColumn,
			Message: "no rows for target year",
			Value:   fmt.Sprintf("%d", cfg.Year),
		}
	}

	states := df.Col(cfg.StateColumn).Records()
	candidates := df.Col(cfg.CandidateColumn).Records()
	votes := df.Col(cfg.VotesColumn).Float()

	byState := make(map[string]map[string]float64)
	for i := range states {
		if math.IsNaN(votes[i]) {
			continue
		}
		byCand, ok := byState[states[i]]
		if !ok {
			byCand = make(map[string]float64)
			byState[states[i]] = byCand
		}
		byCand[candidates[i]] += votes[i]
	}
	return byState, nil
}

// Shares reduces the grouped vote totals to one record per state: each
// configured candidate's fraction of the state's total vote and the derived
// leading-candidate label. Records come back sorted by state name.
func Shares(byState map[string]map[string]float64, cfg Config) ([]models.ElectionRecord, error) {
	records := make([]models.ElectionRecord, 0, len(byState))
	seenA, seenB := false, false
	for state, byCand := range byState {
		total := 0.0
		for _, v := range byCand {
			total += v
		}
		if total <= 0 {
			return nil, models.ValidationError{Field: cfg.VotesColumn, Message: "state has no votes", Value: state}
		}
		if _, ok := byCand[cfg.CandidateA]; ok {
			seenA = true
		}
		if _, ok := byCand[cfg.CandidateB]; ok {
			seenB = true
		}
		shareA := byCand[cfg.CandidateA] / total
		shareB := byCand[cfg.CandidateB] / total
		records = append(records, models.ElectionRecord{
			State:  state,
			ShareA: shareA,
			ShareB: shareB,
			LeansA: shareA > shareB,
		})
	}
	// A candidate absent from every state is a misspelled name, not a real
	// zero-vote result.
	if !seenA {
		return nil, models.ValidationError{Field: "candidate_a", Message: "candidate not found in any state's returns", Value: cfg.CandidateA}
	}
	if !seenB {
		return nil, models.ValidationError{Field: "candidate_b", Message: "candidate not found in any state's returns", Value: cfg.CandidateB}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].State < records[j].State })
	return records, nil
}

// Join inner-joins the state-level demographic table with the election
// records on state name. States present on only one side are dropped and
// reported in the returned JoinMismatchError, which is warning-level: a
// non-empty mismatch does not fail the join.
func Join(regions *models.RegionTable, records []models.ElectionRecord) (*models.StateVectors, models.JoinMismatchError) {
	byState := make(map[string]models.ElectionRecord, len(records))
	for _, rec := range records {
		byState[rec.State] = rec
	}

	var mismatch models.JoinMismatchError
	out := &models.StateVectors{
		Columns: append([]string(nil), regions.Columns...),
	}
	joined := make(map[string]bool)
	for i, state := range regions.Keys {
		rec, ok := byState[state]
		if !ok {
			mismatch.MissingElection = append(mismatch.MissingElection, state)
			continue
		}
		out.States = append(out.States, state)
		out.Values = append(out.Values, append([]float64(nil), regions.Values[i]...))
		out.LeansA = append(out.LeansA, rec.LeansA)
		joined[state] = true
	}
	for _, rec := range records {
		if !joined[rec.State] {
			mismatch.MissingDemographic = append(mismatch.MissingDemographic, rec.State)
		}
	}
	sort.Strings(mismatch.MissingDemographic)
	return out, mismatch
}
