package s2_clustering

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultMaxIter = 300
	defaultTol     = 1e-4
)

// KMeansConfig configures seeded k-means with independent restarts
type KMeansConfig struct {
	K        int
	Seed     int64
	Restarts int
	MaxIter  int
	Tol      float64 // relative to the mean per-dimension variance of the points
}

// KMeansResult is the best restart
type KMeansResult struct {
	Labels    []int
	Centers   [][]float64
	Inertia   float64
	Restart   int
	Iteration int
}

// KMeans runs cfg.Restarts independent k-means++ / Lloyd runs concurrently and keeps the
// lowest-inertia one. Restart r draws from its own source seeded with Seed+r, so the result
// does not depend on goroutine scheduling. Inertia ties go to the lowest restart index.
func KMeans(ctx context.Context, points [][]float64, cfg KMeansConfig) (*KMeansResult, error) {
	if cfg.Restarts <= 0 {
		cfg.Restarts = 1
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = defaultMaxIter
	}
	tol := cfg.Tol * meanVariance(points)

	results := make([]*KMeansResult, cfg.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < cfg.Restarts; r++ {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(r)))
			res := lloyd(points, kmeansPlusPlus(points, cfg.K, rng), cfg.MaxIter, tol)
			res.Restart = r
			results[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// kmeansPlusPlus picks k initial centers, each new one with probability ∝ squared distance
// to the nearest chosen center
func kmeansPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.Intn(n)]))

	closest := make([]float64, n)
	for i, p := range points {
		closest[i] = sqDist(p, centers[0])
	}

	for len(centers) < k {
		total := 0.0
		for _, d := range closest {
			total += d
		}

		next := -1
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range closest {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// every point coincides with a center
			next = rng.Intn(n)
		}

		c := clone(points[next])
		centers = append(centers, c)
		for i, p := range points {
			if d := sqDist(p, c); d < closest[i] {
				closest[i] = d
			}
		}
	}
	return centers
}

// lloyd alternates assignment and center updates until the total squared center shift
// falls to tol or maxIter is reached. An emptied cluster keeps its previous center.
func lloyd(points [][]float64, centers [][]float64, maxIter int, tol float64) *KMeansResult {
	n := len(points)
	k := len(centers)
	labels := make([]int, n)

	iter := 0
	for iter = 1; iter <= maxIter; iter++ {
		assign(points, centers, labels)

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, len(centers[c]))
		}
		for i, p := range points {
			counts[labels[i]]++
			for d, v := range p {
				next[labels[i]][d] += v
			}
		}

		shift := 0.0
		for c := range next {
			if counts[c] == 0 {
				next[c] = centers[c]
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
			shift += sqDist(next[c], centers[c])
		}
		centers = next

		if shift <= tol {
			break
		}
	}
	if iter > maxIter {
		iter = maxIter
	}

	inertia := assign(points, centers, labels)
	return &KMeansResult{
		Labels:    labels,
		Centers:   centers,
		Inertia:   inertia,
		Iteration: iter,
	}
}

// assign labels each point with its nearest center (lowest index on ties) and returns the inertia
func assign(points [][]float64, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestD := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(p, center); d < bestD {
				best, bestD = c, d
			}
		}
		labels[i] = best
		inertia += bestD
	}
	return inertia
}

// meanVariance is the population variance of the points averaged over dimensions
func meanVariance(points [][]float64) float64 {
	if len(points) == 0 || len(points[0]) == 0 {
		return 0
	}
	dim := len(points[0])
	col := make([]float64, len(points))
	total := 0.0
	for d := 0; d < dim; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		total += stat.PopVariance(col, nil)
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
