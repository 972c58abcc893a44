package s2_clustering

import (
	"math"
	"sort"

	"github.com/wonny/clusterarb/internal/contracts"
)

// Merge is one step of the agglomerative hierarchy
type Merge struct {
	A, B   int     // representative ticker index of each merged cluster
	Height float64 // Ward linkage distance at which the merge happened
	Size   int     // size of the resulting cluster
}

// Hierarchical clusters tickers with Ward linkage on d = 1-|corr| and cuts the tree into at most k flat clusters
func Hierarchical(corr *contracts.CorrelationMatrix, k int) []int {
	n := corr.Size()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = 1 - math.Abs(corr.At(i, j))
			}
		}
	}
	return CutMaxClusters(n, WardLinkage(dist), k)
}

// WardLinkage builds the full merge sequence with the Lance–Williams update for Ward's criterion.
// Each step joins the active pair with the smallest linkage distance; ties go to the lowest (i, j).
func WardLinkage(dist [][]float64) []Merge {
	n := len(dist)
	d := make([][]float64, n)
	for i := range d {
		d[i] = append([]float64(nil), dist[i]...)
	}
	size := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	merges := make([]Merge, 0, n-1)
	for step := 0; step < n-1; step++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < best {
					best, bi, bj = d[i][j], i, j
				}
			}
		}

		ni, nj := float64(size[bi]), float64(size[bj])
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			nk := float64(size[k])
			v := ((ni+nk)*d[bi][k]*d[bi][k] + (nj+nk)*d[bj][k]*d[bj][k] - nk*best*best) / (ni + nj + nk)
			nd := math.Sqrt(math.Max(v, 0))
			d[bi][k] = nd
			d[k][bi] = nd
		}

		size[bi] += size[bj]
		active[bj] = false
		merges = append(merges, Merge{A: bi, B: bj, Height: best, Size: size[bi]})
	}
	return merges
}

// CutMaxClusters flattens a merge sequence into at most k clusters.
// It picks the smallest merge height t such that applying every merge with height ≤ t leaves
// no more than k clusters. Tied heights at the cut can leave fewer than k clusters.
func CutMaxClusters(n int, merges []Merge, k int) []int {
	// monotone heights along each branch
	eff := make([]float64, len(merges))
	last := make([]int, n) // latest merge index owning each representative
	for i := range last {
		last[i] = -1
	}
	for m, mg := range merges {
		h := mg.Height
		if p := last[mg.A]; p >= 0 && eff[p] > h {
			h = eff[p]
		}
		if p := last[mg.B]; p >= 0 && eff[p] > h {
			h = eff[p]
		}
		eff[m] = h
		last[mg.A] = m
		last[mg.B] = m
	}

	order := make([]int, len(merges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return eff[order[a]] < eff[order[b]] })

	applied := 0
	clusters := n
	for clusters > k && applied < len(order) {
		h := eff[order[applied]]
		for applied < len(order) && eff[order[applied]] <= h {
			applied++
			clusters--
		}
	}

	uf := newUnionFind(n)
	for _, m := range order[:applied] {
		uf.union(merges[m].A, merges[m].B)
	}
	labels := make([]int, n)
	for i := range labels {
		labels[i] = uf.find(i)
	}
	return labels
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
