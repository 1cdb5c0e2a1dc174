package hcluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// dnode is one cluster in the divisive tree.
type dnode struct {
	members []int // leaf indices, ascending
	height  float64
	depth   int
	left    *dnode
	right   *dnode
}

// Divisive builds a split tree over the rows of x with the DIANA procedure:
// repeatedly pick the active cluster with the largest diameter, seed a
// splinter group with the point of highest average dissimilarity to the
// rest, and move over every point whose average dissimilarity to the
// splinter is smaller than to the remainder. The recorded height of a split
// is the diameter of the cluster being split, so the resulting dendrogram
// is monotone by construction.
func Divisive(x *mat.Dense, labels []string) (*Dendrogram, error) {
	n, _ := x.Dims()
	if err := checkInput(n, labels); err != nil {
		return nil, err
	}

	dist := DistanceMatrix(x)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	root := &dnode{members: all, height: diameter(all, dist)}

	dend := &Dendrogram{
		Method: "divisive/diana",
		Labels: append([]string(nil), labels...),
	}

	// Active clusters still containing more than one point, in creation
	// order so that equal-diameter candidates resolve deterministically.
	active := []*dnode{root}
	var internal []*dnode
	for len(active) > 0 {
		pick := 0
		for i := 1; i < len(active); i++ {
			if active[i].height > active[pick].height {
				pick = i
			}
		}
		node := active[pick]
		active = append(active[:pick], active[pick+1:]...)

		splinter, remainder := splitCluster(node.members, dist)
		node.left = &dnode{members: splinter, height: diameter(splinter, dist), depth: node.depth + 1}
		node.right = &dnode{members: remainder, height: diameter(remainder, dist), depth: node.depth + 1}
		internal = append(internal, node)

		dend.Splits = append(dend.Splits, Split{
			Cluster:   append([]int(nil), node.members...),
			Splinter:  append([]int(nil), splinter...),
			Remainder: append([]int(nil), remainder...),
			Diameter:  node.height,
		})

		for _, child := range []*dnode{node.left, node.right} {
			if len(child.members) > 1 {
				active = append(active, child)
			}
		}
	}

	dend.Merges = linearize(internal, n)
	return dend, nil
}

// splitCluster separates one cluster into a splinter group and a remainder.
// Ties break toward the lowest leaf index throughout.
func splitCluster(members []int, dist *mat.SymDense) (splinter, remainder []int) {
	// Seed: the point with the highest average dissimilarity to the rest.
	seedPos := 0
	seedAvg := math.Inf(-1)
	for pos, p := range members {
		avg := avgDist(p, members, dist)
		if avg > seedAvg {
			seedPos, seedAvg = pos, avg
		}
	}

	splinter = []int{members[seedPos]}
	remainder = append(append([]int(nil), members[:seedPos]...), members[seedPos+1:]...)

	// Move points that sit closer (on average) to the splinter than to the
	// rest of their own group, largest improvement first.
	for len(remainder) > 1 {
		bestPos, bestGain := -1, 0.0
		for pos, p := range remainder {
			gain := avgDist(p, remainder, dist) - avgDistTo(p, splinter, dist)
			if gain > bestGain {
				bestPos, bestGain = pos, gain
			}
		}
		if bestPos < 0 {
			break
		}
		p := remainder[bestPos]
		remainder = append(remainder[:bestPos], remainder[bestPos+1:]...)
		splinter = insertSorted(splinter, p)
	}

	sort.Ints(splinter)
	sort.Ints(remainder)
	return splinter, remainder
}

// linearize turns the split tree into a bottom-up merge list: ascending
// height, deeper nodes first on ties so children always precede parents,
// then smallest member for full determinism.
func linearize(internal []*dnode, n int) []Merge {
	nodes := append([]*dnode(nil), internal...)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].height != nodes[j].height {
			return nodes[i].height < nodes[j].height
		}
		if nodes[i].depth != nodes[j].depth {
			return nodes[i].depth > nodes[j].depth
		}
		return nodes[i].members[0] < nodes[j].members[0]
	})

	// Assign merge node ids in merge order, keyed by the cluster's member
	// set. Leaves keep their own ids.
	id := func(d *dnode) int {
		if len(d.members) == 1 {
			return d.members[0]
		}
		return -1
	}
	assigned := make(map[*dnode]int)
	merges := make([]Merge, 0, len(nodes))
	for t, node := range nodes {
		a := id(node.left)
		if a < 0 {
			a = assigned[node.left]
		}
		b := id(node.right)
		if b < 0 {
			b = assigned[node.right]
		}
		if b < a {
			a, b = b, a
		}
		assigned[node] = n + t
		merges = append(merges, Merge{A: a, B: b, Height: node.height, Size: len(node.members)})
	}
	return merges
}

// avgDist is the average distance from p to the other members of its own
// group (p excluded).
func avgDist(p int, group []int, dist *mat.SymDense) float64 {
	if len(group) < 2 {
		return 0
	}
	sum := 0.0
	for _, q := range group {
		if q == p {
			continue
		}
		sum += dist.At(p, q)
	}
	return sum / float64(len(group)-1)
}

// avgDistTo is the average distance from p to every member of another
// group.
func avgDistTo(p int, group []int, dist *mat.SymDense) float64 {
	sum := 0.0
	for _, q := range group {
		sum += dist.At(p, q)
	}
	return sum / float64(len(group))
}

func diameter(group []int, dist *mat.SymDense) float64 {
	worst := 0.0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			if d := dist.At(group[i], group[j]); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func insertSorted(s []int, v int) []int {
	pos := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}
