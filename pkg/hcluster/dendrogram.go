package hcluster

import (
	"fmt"
	"sort"

	"github.com/demolab/state-clustering-service/pkg/models"
)

// Merge is one event in a dendrogram. A and B are node ids: leaves are
// 0..n-1, and the t-th merge creates node n+t. Height is the linkage
// distance (agglomerative) or the diameter of the cluster being split
// (divisive).
type Merge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Height float64 `json:"height"`
	Size   int     `json:"size"`
}

// Split is one divisive event, in the order the algorithm performed it:
// the cluster with the largest diameter is split into a splinter group and
// a remainder.
type Split struct {
	Cluster   []int   `json:"cluster"`
	Splinter  []int   `json:"splinter"`
	Remainder []int   `json:"remainder"`
	Diameter  float64 `json:"diameter"`
}

// Dendrogram is a binary merge tree over n labeled points. Merges are in
// merge order; for divisive trees Splits additionally records the top-down
// event sequence.
type Dendrogram struct {
	Method string   `json:"method"`
	Labels []string `json:"labels"`
	Merges []Merge  `json:"merges"`
	Splits []Split  `json:"splits,omitempty"`
}

// NumLeaves returns the number of clustered points.
func (d *Dendrogram) NumLeaves() int { return len(d.Labels) }

// Monotone reports whether merge heights are non-decreasing up the tree:
// every merge happens at a height at least that of both its children.
// Centroid linkage may legally violate this (inversions).
func (d *Dendrogram) Monotone() bool {
	n := d.NumLeaves()
	height := make([]float64, n+len(d.Merges))
	for t, m := range d.Merges {
		if m.Height < height[m.A] || m.Height < height[m.B] {
			return false
		}
		height[n+t] = m.Height
	}
	return true
}

// CutHeight cuts the tree at the given height: merges with Height <= h are
// applied, everything above is discarded. Clusters come back as sorted leaf
// index sets, ordered by their smallest member.
func (d *Dendrogram) CutHeight(h float64) [][]int {
	applied := 0
	for applied < len(d.Merges) && d.Merges[applied].Height <= h {
		applied++
	}
	return d.clustersAfter(applied)
}

// CutN cuts the tree into exactly k clusters.
func (d *Dendrogram) CutN(k int) ([][]int, error) {
	n := d.NumLeaves()
	if k < 1 || k > n {
		return nil, models.ValidationError{Field: "k", Message: fmt.Sprintf("cluster count must be in [1,%d]", n), Value: fmt.Sprintf("%d", k)}
	}
	return d.clustersAfter(n - k), nil
}

func (d *Dendrogram) clustersAfter(applied int) [][]int {
	n := d.NumLeaves()
	members := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
	}
	for t := 0; t < applied; t++ {
		m := d.Merges[t]
		merged := mergeMembers(members[m.A], members[m.B])
		delete(members, m.A)
		delete(members, m.B)
		members[n+t] = merged
	}

	out := make([][]int, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// LeafOrder returns leaf indices in dendrogram drawing order: the order in
// which leaves appear when the tree is laid out with the lower-id child on
// the left.
func (d *Dendrogram) LeafOrder() []int {
	n := d.NumLeaves()
	if len(d.Merges) == 0 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}

	var walk func(node int) []int
	walk = func(node int) []int {
		if node < n {
			return []int{node}
		}
		m := d.Merges[node-n]
		return append(walk(m.A), walk(m.B)...)
	}
	root := n + len(d.Merges) - 1
	return walk(root)
}

// NodeHeight returns the height of a node: 0 for leaves, the merge height
// for internal nodes.
func (d *Dendrogram) NodeHeight(node int) float64 {
	n := d.NumLeaves()
	if node < n {
		return 0
	}
	return d.Merges[node-n].Height
}
