package report

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/demolab/state-clustering-service/pkg/hcluster"
)

// DendrogramPlot draws the merge tree as the usual upside-down U links:
// leaves along the x axis in tree order, merge height on the y axis, state
// names as rotated tick labels.
func DendrogramPlot(dend *hcluster.Dendrogram, path string) error {
	p := plot.New()
	p.Title.Text = dend.Method
	p.Y.Label.Text = "Distance"

	n := dend.NumLeaves()
	order := dend.LeafOrder()

	// Leaf x positions follow drawing order; internal nodes sit at the
	// midpoint of their children.
	x := make([]float64, n+len(dend.Merges))
	for pos, leaf := range order {
		x[leaf] = float64(pos)
	}
	for t, m := range dend.Merges {
		x[n+t] = (x[m.A] + x[m.B]) / 2
	}

	for _, m := range dend.Merges {
		ha := dend.NodeHeight(m.A)
		hb := dend.NodeHeight(m.B)
		link := plotter.XYs{
			{X: x[m.A], Y: ha},
			{X: x[m.A], Y: m.Height},
			{X: x[m.B], Y: m.Height},
			{X: x[m.B], Y: hb},
		}
		line, err := plotter.NewLine(link)
		if err != nil {
			return err
		}
		line.Color = colorB
		p.Add(line)
	}

	p.X.Tick.Marker = leafTicks{order: order, labels: dend.Labels}
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Min = -1
	p.X.Max = float64(n)

	return p.Save(14*vg.Inch, 7*vg.Inch, path)
}

// leafTicks places one labeled tick per leaf position.
type leafTicks struct {
	order  []int
	labels []string
}

func (lt leafTicks) Ticks(min, max float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, len(lt.order))
	for pos, leaf := range lt.order {
		if float64(pos) < min || float64(pos) > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: float64(pos), Label: lt.labels[leaf]})
	}
	return ticks
}
