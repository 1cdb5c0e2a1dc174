// Package hcluster builds hierarchical cluster trees over the state score
// vectors: bottom-up agglomerative merging under four linkage rules, and
// top-down divisive splitting (DIANA). Both directions emit the same
// dendrogram structure, sufficient to redraw or re-cut the tree at any
// threshold. All candidate scans run in ascending index order, so ties
// resolve deterministically and repeated runs produce identical trees.
package hcluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// Linkage is the rule for the distance between two clusters.
type Linkage int

const (
	Single   Linkage = iota // min pairwise distance
	Complete                // max pairwise distance
	Average                 // mean pairwise distance
	Centroid                // distance between cluster means
)

func (l Linkage) String() string {
	switch l {
	case Single:
		return "single"
	case Complete:
		return "complete"
	case Average:
		return "average"
	case Centroid:
		return "centroid"
	default:
		return "unknown"
	}
}

// ParseLinkage maps a configuration string to a Linkage.
func ParseLinkage(s string) (Linkage, error) {
	switch s {
	case "single":
		return Single, nil
	case "complete":
		return Complete, nil
	case "average":
		return Average, nil
	case "centroid":
		return Centroid, nil
	default:
		return 0, models.ValidationError{Field: "linkage", Message: "unknown linkage", Value: s}
	}
}

// DistanceMatrix computes pairwise Euclidean distances between the rows
// of x.
func DistanceMatrix(x mat.Matrix) *mat.SymDense {
	n, d := x.Dims()
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum := 0.0
			for k := 0; k < d; k++ {
				diff := x.At(i, k) - x.At(j, k)
				sum += diff * diff
			}
			dist.SetSym(i, j, math.Sqrt(sum))
		}
	}
	return dist
}

// cluster is one active cluster during agglomeration.
type cluster struct {
	id       int   // leaf id (< n) or merge node id (>= n)
	members  []int // leaf indices, ascending
	centroid []float64
}

// Agglomerative builds a merge tree over the rows of x. Every point starts
// as its own cluster; the pair with the smallest linkage distance merges
// until one cluster remains.
func Agglomerative(x *mat.Dense, labels []string, link Linkage) (*Dendrogram, error) {
	n, d := x.Dims()
	if err := checkInput(n, labels); err != nil {
		return nil, err
	}

	dist := DistanceMatrix(x)

	active := make([]*cluster, n)
	for i := 0; i < n; i++ {
		c := &cluster{id: i, members: []int{i}}
		if link == Centroid {
			c.centroid = mat.Row(nil, i, x)
		}
		active[i] = c
	}

	dend := &Dendrogram{
		Method: "agglomerative/" + link.String(),
		Labels: append([]string(nil), labels...),
	}

	for t := 0; t < n-1; t++ {
		// Smallest linkage distance wins; scanning i<j in slot order keeps
		// equidistant candidates deterministic.
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < len(active); i++ {
			for j := i + 1; j < len(active); j++ {
				d := linkageDistance(active[i], active[j], dist, link)
				if d < best {
					bi, bj, best = i, j, d
				}
			}
		}

		a, b := active[bi], active[bj]
		merged := &cluster{
			id:      n + t,
			members: mergeMembers(a.members, b.members),
		}
		if link == Centroid {
			merged.centroid = weightedCentroid(a, b, d)
		}

		lo, hi := a.id, b.id
		if hi < lo {
			lo, hi = hi, lo
		}
		dend.Merges = append(dend.Merges, Merge{
			A:      lo,
			B:      hi,
			Height: best,
			Size:   len(merged.members),
		})

		// Replace the lower slot, drop the higher. Slot order is part of the
		// tie-break contract.
		active[bi] = merged
		active = append(active[:bj], active[bj+1:]...)
	}

	return dend, nil
}

func linkageDistance(a, b *cluster, dist *mat.SymDense, link Linkage) float64 {
	switch link {
	case Centroid:
		sum := 0.0
		for k := range a.centroid {
			diff := a.centroid[k] - b.centroid[k]
			sum += diff * diff
		}
		return math.Sqrt(sum)
	case Single:
		best := math.Inf(1)
		for _, i := range a.members {
			for _, j := range b.members {
				if d := dist.At(i, j); d < best {
					best = d
				}
			}
		}
		return best
	case Complete:
		worst := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				if d := dist.At(i, j); d > worst {
					worst = d
				}
			}
		}
		return worst
	default: // Average
		sum := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				sum += dist.At(i, j)
			}
		}
		return sum / float64(len(a.members)*len(b.members))
	}
}

func mergeMembers(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Ints(out)
	return out
}

func weightedCentroid(a, b *cluster, dims int) []float64 {
	na, nb := float64(len(a.members)), float64(len(b.members))
	out := make([]float64, dims)
	for k := 0; k < dims; k++ {
		out[k] = (a.centroid[k]*na + b.centroid[k]*nb) / (na + nb)
	}
	return out
}

func checkInput(n int, labels []string) error {
	if n < 2 {
		return models.ValidationError{Field: "rows", Message: fmt.Sprintf("need at least 2 points, got %d", n)}
	}
	if len(labels) != n {
		return models.ValidationError{
			Field:   "labels",
			Message: fmt.Sprintf("label count (%d) must match row count (%d)", len(labels), n),
		}
	}
	return nil
}
