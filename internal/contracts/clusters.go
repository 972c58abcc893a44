package contracts

import "fmt"

// ClusterMethod names one of the clustering algorithms
type ClusterMethod string

const (
	MethodHierarchical ClusterMethod = "hierarchical"
	MethodSpectral     ClusterMethod = "spectral"
)

// ParseClusterMethod accepts the method name case-sensitively as stored in config
func ParseClusterMethod(s string) (ClusterMethod, error) {
	switch ClusterMethod(s) {
	case MethodHierarchical, MethodSpectral:
		return ClusterMethod(s), nil
	default:
		return "", NewInvalidParameter("method", s, "must be hierarchical or spectral")
	}
}

// CorrelationMatrix is a ticker × ticker Pearson correlation matrix
type CorrelationMatrix struct {
	Tickers []string    `json:"tickers"`
	Values  [][]float64 `json:"values"`
}

// Size returns the number of tickers
func (c *CorrelationMatrix) Size() int {
	return len(c.Tickers)
}

// At returns corr(i, j)
func (c *CorrelationMatrix) At(i, j int) float64 {
	return c.Values[i][j]
}

// Cluster is one group of co-moving tickers
type Cluster struct {
	ID      int      `json:"id"`
	Tickers []string `json:"tickers"`
}

// ClusterAssignment partitions the ticker universe into clusters
// ⭐ SSOT: S2(클러스터링) → S3(잔차) 전달
// Every ticker appears in exactly one cluster.
type ClusterAssignment struct {
	Method    ClusterMethod `json:"method"`
	Requested int           `json:"requested"`
	Clusters  []Cluster     `json:"clusters"`

	labels map[string]int
}

// NewClusterAssignment builds an assignment from per-ticker labels.
// Cluster ids are renumbered 0..n-1 in order of first appearance along tickers.
func NewClusterAssignment(method ClusterMethod, requested int, tickers []string, labels []int) (*ClusterAssignment, error) {
	if len(tickers) != len(labels) {
		return nil, fmt.Errorf("got %d labels for %d tickers", len(labels), len(tickers))
	}

	remap := make(map[int]int)
	a := &ClusterAssignment{
		Method:    method,
		Requested: requested,
		labels:    make(map[string]int, len(tickers)),
	}
	for i, ticker := range tickers {
		if _, dup := a.labels[ticker]; dup {
			return nil, fmt.Errorf("duplicate ticker %s", ticker)
		}
		id, ok := remap[labels[i]]
		if !ok {
			id = len(a.Clusters)
			remap[labels[i]] = id
			a.Clusters = append(a.Clusters, Cluster{ID: id})
		}
		a.Clusters[id].Tickers = append(a.Clusters[id].Tickers, ticker)
		a.labels[ticker] = id
	}
	return a, nil
}

// ClusterOf returns the cluster id of a ticker
func (a *ClusterAssignment) ClusterOf(ticker string) (int, bool) {
	if a.labels == nil {
		// decoded from JSON
		for _, c := range a.Clusters {
			for _, t := range c.Tickers {
				if t == ticker {
					return c.ID, true
				}
			}
		}
		return 0, false
	}
	id, ok := a.labels[ticker]
	return id, ok
}

// Count returns the number of non-empty clusters
func (a *ClusterAssignment) Count() int {
	return len(a.Clusters)
}

// Tickers returns every assigned ticker, grouped by cluster
func (a *ClusterAssignment) Tickers() []string {
	out := make([]string, 0)
	for _, c := range a.Clusters {
		out = append(out, c.Tickers...)
	}
	return out
}
