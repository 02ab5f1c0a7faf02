// Package cluster implements agglomerative clustering of frequency-weighted
// points in the plane. Validation rules use it to separate a dominant group
// of observations from outliers.
package cluster

import (
	"math"
	"sort"
)

// Pair is a point in the plane
type Pair struct {
	X, Y float64
}

// Less orders pairs by X, then Y
func (p Pair) Less(o Pair) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	return p.Y < o.Y
}

// Dist is the Euclidean distance between two pairs
func (p Pair) Dist(o Pair) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// PairCluster is a non-empty set of distinct pairs, each with a positive
// occurrence count. Clusters are never modified; Merge returns a new one.
type PairCluster struct {
	points  []Pair // sorted by Less
	weights []int
	total   int
}

// NewPairCluster builds a cluster from a weight map. Non-positive weights are dropped.
func NewPairCluster(weights map[Pair]int) *PairCluster {
	c := &PairCluster{}
	for p, w := range weights {
		if w > 0 {
			c.points = append(c.points, p)
		}
	}
	sort.Slice(c.points, func(i, j int) bool { return c.points[i].Less(c.points[j]) })

	c.weights = make([]int, len(c.points))
	for i, p := range c.points {
		c.weights[i] = weights[p]
		c.total += weights[p]
	}
	return c
}

// Points returns the distinct pairs of the cluster, sorted by X then Y
func (c *PairCluster) Points() []Pair {
	return append([]Pair(nil), c.points...)
}

// Weights returns a copy of the weight map
func (c *PairCluster) Weights() map[Pair]int {
	m := make(map[Pair]int, len(c.points))
	for i, p := range c.points {
		m[p] = c.weights[i]
	}
	return m
}

// Weight returns the total occurrence count
func (c *PairCluster) Weight() int {
	return c.total
}

// Mean returns the weighted centroid
func (c *PairCluster) Mean() Pair {
	var sx, sy float64
	for i, p := range c.points {
		w := float64(c.weights[i])
		sx += p.X * w
		sy += p.Y * w
	}
	n := float64(c.total)
	return Pair{X: sx / n, Y: sy / n}
}

// Distance is the weighted average distance between the points of the two
// clusters (average linkage)
func (c *PairCluster) Distance(o *PairCluster) float64 {
	var d, norm float64
	for i, p := range c.points {
		for j, q := range o.points {
			w := float64(c.weights[i] * o.weights[j])
			d += w * p.Dist(q)
			norm += w
		}
	}
	return d / norm
}

// Merge returns a cluster holding the points of both, weights summed on collision
func (c *PairCluster) Merge(o *PairCluster) *PairCluster {
	m := &PairCluster{
		points:  make([]Pair, 0, len(c.points)+len(o.points)),
		weights: make([]int, 0, len(c.points)+len(o.points)),
		total:   c.total + o.total,
	}

	i, j := 0, 0
	for i < len(c.points) || j < len(o.points) {
		switch {
		case j == len(o.points) || (i < len(c.points) && c.points[i].Less(o.points[j])):
			m.points = append(m.points, c.points[i])
			m.weights = append(m.weights, c.weights[i])
			i++
		case i == len(c.points) || o.points[j].Less(c.points[i]):
			m.points = append(m.points, o.points[j])
			m.weights = append(m.weights, o.weights[j])
			j++
		default:
			m.points = append(m.points, c.points[i])
			m.weights = append(m.weights, c.weights[i]+o.weights[j])
			i++
			j++
		}
	}
	return m
}

// Agglomerate clusters the multiset of points bottom-up. Starting from one
// cluster per distinct point, the closest pair of clusters is merged while
// their distance is at most threshold. Clusters weighing less than minSize
// are dropped and the rest are returned heaviest first, ties broken by
// ascending centroid.
func Agglomerate(points []Pair, threshold float64, minSize int) []*PairCluster {
	counts := make(map[Pair]int)
	for _, p := range points {
		counts[p]++
	}

	// start from singletons sorted by position, so input order does not matter
	distinct := make([]Pair, 0, len(counts))
	for p := range counts {
		distinct = append(distinct, p)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i].Less(distinct[j]) })

	clusters := make([]*PairCluster, len(distinct))
	for i, p := range distinct {
		clusters[i] = NewPairCluster(map[Pair]int{p: counts[p]})
	}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := clusters[i].Distance(clusters[j]); d < best {
					best, bi, bj = d, i, j
				}
			}
		}
		if best > threshold {
			break
		}

		clusters[bi] = clusters[bi].Merge(clusters[bj])
		clusters = append(clusters[:bj], clusters[bj+1:]...)
	}

	kept := clusters[:0]
	for _, c := range clusters {
		if c.Weight() >= minSize {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Weight() != kept[j].Weight() {
			return kept[i].Weight() > kept[j].Weight()
		}
		return kept[i].Mean().Less(kept[j].Mean())
	})
	return kept
}
