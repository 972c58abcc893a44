package s2_clustering

import (
	"context"
	"fmt"

	"github.com/wonny/clusterarb/internal/contracts"
)

const (
	// DefaultSeed seeds the spectral k-means step
	DefaultSeed int64 = 42

	// DefaultRestarts is the number of independent k-means runs
	DefaultRestarts = 10
)

// Params configures one clustering run
type Params struct {
	K        int
	Method   contracts.ClusterMethod
	Seed     int64
	Restarts int // spectral only; 0 means DefaultRestarts
}

// DefaultParams returns hierarchical clustering into k groups with the documented seed and restarts
func DefaultParams(k int) Params {
	return Params{
		K:        k,
		Method:   contracts.MethodHierarchical,
		Seed:     DefaultSeed,
		Restarts: DefaultRestarts,
	}
}

// Cluster partitions the tickers of a correlation matrix into at most K groups
// ⭐ SSOT: 클러스터링 알고리즘 선택은 이 함수에서만
// Pathological input may yield fewer than K non-empty clusters; that result is returned as is.
func Cluster(ctx context.Context, corr *contracts.CorrelationMatrix, p Params) (*contracts.ClusterAssignment, error) {
	if corr == nil || corr.Size() == 0 {
		return nil, contracts.NewInsufficientData("clustering", 2, 0, "empty correlation matrix")
	}
	n := corr.Size()
	if len(corr.Values) != n {
		return nil, fmt.Errorf("correlation matrix has %d rows for %d tickers", len(corr.Values), n)
	}
	if p.K < 2 || p.K > n {
		return nil, contracts.NewInvalidParameter("num_clusters", p.K, fmt.Sprintf("must be in [2, %d]", n))
	}
	if p.Restarts < 0 {
		return nil, contracts.NewInvalidParameter("restarts", p.Restarts, "must be >= 0")
	}

	var labels []int
	var err error
	switch p.Method {
	case contracts.MethodHierarchical:
		labels = Hierarchical(corr, p.K)
	case contracts.MethodSpectral:
		restarts := p.Restarts
		if restarts == 0 {
			restarts = DefaultRestarts
		}
		labels, err = Spectral(ctx, corr, p.K, p.Seed, restarts)
	default:
		return nil, contracts.NewInvalidParameter("method", p.Method, "must be hierarchical or spectral")
	}
	if err != nil {
		return nil, err
	}

	return contracts.NewClusterAssignment(p.Method, p.K, corr.Tickers, labels)
}
