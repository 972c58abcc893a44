package s2_clustering

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/clusterarb/internal/contracts"
)

// Spectral clusters tickers on the affinity A = (corr+1)/2.
// The k smallest eigenvectors of the normalised graph Laplacian embed each ticker,
// then seeded k-means with restarts partitions the embedding.
func Spectral(ctx context.Context, corr *contracts.CorrelationMatrix, k int, seed int64, restarts int) ([]int, error) {
	embedding, err := SpectralEmbedding(corr, k)
	if err != nil {
		return nil, err
	}

	res, err := KMeans(ctx, embedding, KMeansConfig{
		K:        k,
		Seed:     seed,
		Restarts: restarts,
		MaxIter:  defaultMaxIter,
		Tol:      defaultTol,
	})
	if err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// SpectralEmbedding returns an n × k embedding from the symmetric normalised Laplacian
// L = I - D^-1/2 A D^-1/2. Self-affinity is ignored. Eigenvectors are rescaled by D^-1/2 and
// sign-normalised so the largest-magnitude entry of each is positive.
func SpectralEmbedding(corr *contracts.CorrelationMatrix, k int) ([][]float64, error) {
	n := corr.Size()

	affinity := make([][]float64, n)
	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		affinity[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			a := (corr.At(i, j) + 1) / 2
			affinity[i][j] = a
			degree[i] += a
		}
	}

	isolated := make([]bool, n)
	invSqrt := make([]float64, n)
	for i, d := range degree {
		if d <= 0 {
			isolated[i] = true
			invSqrt[i] = 1
			continue
		}
		invSqrt[i] = 1 / math.Sqrt(d)
	}

	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if !isolated[i] {
			lap.SetSym(i, i, 1)
		}
		for j := i + 1; j < n; j++ {
			lap.SetSym(i, j, -affinity[i][j]*invSqrt[i]*invSqrt[j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(lap, true); !ok {
		return nil, fmt.Errorf("laplacian eigendecomposition did not converge")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// eigenvalues come back in ascending order
	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, k)
		for c := 0; c < k; c++ {
			embedding[i][c] = vecs.At(i, c) * invSqrt[i]
		}
	}

	for c := 0; c < k; c++ {
		maxAbs, sign := 0.0, 1.0
		for i := 0; i < n; i++ {
			if v := embedding[i][c]; math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
				sign = math.Copysign(1, v)
			}
		}
		if sign < 0 {
			for i := 0; i < n; i++ {
				embedding[i][c] = -embedding[i][c]
			}
		}
	}

	return embedding, nil
}
