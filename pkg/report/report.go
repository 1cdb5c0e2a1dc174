// Package report turns a pipeline result into the final artifacts: printed
// summary tables and the plot images (scree, cumulative variance, component
// scatter, dendrograms).
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/demolab/state-clustering-service/pkg/hcluster"
	"github.com/demolab/state-clustering-service/pkg/pipeline"
)

// WriteSummary prints the cleaning, pruning and variance tables for a run.
func WriteSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w, "Cleaning summary")
	writeCleaningTable(w, res)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Pruned features")
	writePruneTable(w, res)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Explained variance")
	writeVarianceTable(w, res)
}

func writeCleaningTable(w io.Writer, res *pipeline.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Missing", "County Mean", "State Mean"})

	r := res.CleanReport
	cols := make([]string, 0, len(r.MissingBefore))
	for c := range r.MissingBefore {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		table.Append([]string{
			c,
			fmt.Sprintf("%d", r.MissingBefore[c]),
			fmt.Sprintf("%d", r.ImputedByCounty[c]),
			fmt.Sprintf("%d", r.ImputedByState[c]),
		})
	}
	table.SetFooter([]string{
		"total rows",
		fmt.Sprintf("%d", r.RowsLoaded),
		"excluded",
		fmt.Sprintf("%d", r.RowsExcluded),
	})
	table.Render()
}

func writePruneTable(w io.Writer, res *pipeline.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Dropped", "Correlated With", "Correlation", "Mean |Corr|"})
	for _, d := range res.PruneResult.Dropped {
		table.Append([]string{
			d.Column,
			d.Partner,
			fmt.Sprintf("%.3f", d.Correlation),
			fmt.Sprintf("%.3f", d.MeanAbsCorr),
		})
	}
	for _, c := range res.PruneResult.Constant {
		table.Append([]string{c, "(constant)", "-", "-"})
	}
	table.Render()
	fmt.Fprintf(w, "kept: %s\n", strings.Join(res.PruneResult.Kept, ", "))
}

func writeVarianceTable(w io.Writer, res *pipeline.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Component", "Share", "Cumulative", "Selected"})
	for i, s := range res.Model.Shares {
		selected := ""
		if i < res.Model.Selected {
			selected = "yes"
		}
		table.Append([]string{
			fmt.Sprintf("PC%d", i+1),
			fmt.Sprintf("%.1f%%", s*100),
			fmt.Sprintf("%.1f%%", res.Model.CumulativeShare(i+1)*100),
			selected,
		})
	}
	table.Render()
}

// WriteClusters prints the membership of the tree cut into k clusters.
func WriteClusters(w io.Writer, dend *hcluster.Dendrogram, k int) error {
	clusters, err := dend.CutN(k)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Cluster", "Size", "States"})
	for i, c := range clusters {
		names := make([]string, len(c))
		for j, leaf := range c {
			names[j] = dend.Labels[leaf]
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", len(c)),
			strings.Join(names, ", "),
		})
	}
	table.Render()
	return nil
}
