package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/demolab/state-clustering-service/pkg/pca"
	"github.com/demolab/state-clustering-service/pkg/pipeline"
)

var (
	colorA = color.RGBA{R: 214, G: 39, B: 40, A: 255}  // states leaning candidate A
	colorB = color.RGBA{R: 31, G: 119, B: 180, A: 255} // states leaning candidate B
)

// WritePlots renders every plot for the run into outputDir and returns the
// file paths.
func WritePlots(res *pipeline.Result, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files []string
	write := func(name string, render func(path string) error) error {
		path := filepath.Join(outputDir, name)
		if err := render(path); err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		files = append(files, path)
		return nil
	}

	if err := write("scree.png", func(p string) error { return ScreePlot(res.Model, p) }); err != nil {
		return files, err
	}
	if err := write("cumulative_variance.png", func(p string) error { return CumulativePlot(res.Model, p) }); err != nil {
		return files, err
	}
	// The scatter needs two retained components; with one it is skipped
	// rather than aborting the remaining plots.
	if _, cols := res.Scores.Dims(); cols >= 2 {
		if err := write("pc_scatter.png", func(p string) error {
			return ScatterPlot(res.Scores, res.Pruned.States, res.Pruned.LeansA, p)
		}); err != nil {
			return files, err
		}
	}
	if err := write("dendrogram_agglomerative.png", func(p string) error {
		return DendrogramPlot(res.Agglomerative, p)
	}); err != nil {
		return files, err
	}
	if err := write("dendrogram_divisive.png", func(p string) error {
		return DendrogramPlot(res.Divisive, p)
	}); err != nil {
		return files, err
	}
	return files, nil
}

// ScreePlot draws each component's explained-variance share.
func ScreePlot(model *pca.Model, path string) error {
	p := plot.New()
	p.Title.Text = "Scree Plot"
	p.X.Label.Text = "Component"
	p.Y.Label.Text = "Explained Variance Share"

	values := make(plotter.Values, len(model.Shares))
	for i, s := range model.Shares {
		values[i] = s
	}
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = colorB
	p.Add(bars)

	names := make([]string, len(model.Shares))
	for i := range names {
		names[i] = fmt.Sprintf("PC%d", i+1)
	}
	p.NominalX(names...)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// CumulativePlot draws the cumulative explained variance by number of
// components kept.
func CumulativePlot(model *pca.Model, path string) error {
	p := plot.New()
	p.Title.Text = "Cumulative Explained Variance"
	p.X.Label.Text = "Components"
	p.Y.Label.Text = "Cumulative Share"
	p.Y.Max = 1.0

	points := make(plotter.XYs, len(model.Shares))
	for i := range model.Shares {
		points[i].X = float64(i + 1)
		points[i].Y = model.CumulativeShare(i + 1)
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// ScatterPlot draws the first two component scores, colored by the election
// label and annotated with state names.
func ScatterPlot(scores *mat.Dense, states []string, leansA []bool, path string) error {
	_, cols := scores.Dims()
	if cols < 2 {
		return fmt.Errorf("scatter needs at least 2 components, have %d", cols)
	}

	p := plot.New()
	p.Title.Text = "States in Principal Component Space"
	p.X.Label.Text = "PC1"
	p.Y.Label.Text = "PC2"

	var ptsA, ptsB plotter.XYs
	var labels plotter.XYLabels
	for i, state := range states {
		xy := plotter.XY{X: scores.At(i, 0), Y: scores.At(i, 1)}
		if leansA[i] {
			ptsA = append(ptsA, xy)
		} else {
			ptsB = append(ptsB, xy)
		}
		labels.XYs = append(labels.XYs, xy)
		labels.Labels = append(labels.Labels, state)
	}

	for _, group := range []struct {
		pts plotter.XYs
		c   color.Color
	}{{ptsA, colorA}, {ptsB, colorB}} {
		if len(group.pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(group.pts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = group.c
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
	}

	stateLabels, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	p.Add(stateLabels, plotter.NewGrid())

	return p.Save(10*vg.Inch, 8*vg.Inch, path)
}
