package s4_signals

import (
	"math"

	"github.com/wonny/clusterarb/internal/contracts"
)

// DefaultEntryThreshold is the z-score magnitude that opens a position
const DefaultEntryThreshold = 2.0

// Generate thresholds z-scores into mean-reversion signals
// ⭐ SSOT: 시그널 생성 규칙은 여기서만
//
//	z < -τ → +1 (spread stretched down, expect reversion up)
//	z > +τ → -1 (spread stretched up, expect reversion down)
//	otherwise, including undefined z → 0
func Generate(z contracts.Matrix, threshold float64) (*contracts.SignalMatrix, error) {
	if math.IsNaN(threshold) || threshold <= 0 {
		return nil, contracts.NewInvalidParameter("entry_threshold", threshold, "must be > 0")
	}
	if err := z.Validate(); err != nil {
		return nil, contracts.NewInsufficientData("signals", 1, z.Rows(), err.Error())
	}

	out := contracts.NewSignalMatrix(z.Dates, z.Columns)
	for t, row := range z.Values {
		for j, v := range row {
			out.Values[t][j] = classify(v, threshold)
		}
	}
	return out, nil
}

func classify(z, threshold float64) int8 {
	switch {
	case z < -threshold:
		return contracts.SignalLong
	case z > threshold:
		return contracts.SignalShort
	default:
		return contracts.SignalFlat
	}
}
