package jetmet

import (
	"math"

	"github.com/banshee-data/jetmet/internal/event"
)

// DefaultMatchRadius is the ΔR cone for truth matching.
const DefaultMatchRadius = 0.4

// Match is the truth partner found for one reconstructed jet.
type Match struct {
	// Truth is the index into the truth collection of the nearest truth jet,
	// or -1 when there are none.
	Truth   int
	DeltaR  float64
	Matched bool
}

// MatchTruth pairs each reconstructed jet with its nearest truth jet in ΔR.
// A pair is matched when ΔR < radius. A truth jet may be the partner of
// more than one reconstructed jet.
func MatchTruth(jets []*event.Jet, truth []*event.GenJet, radius float64) []Match {
	out := make([]Match, len(jets))
	for i, j := range jets {
		best, bestDR := -1, math.Inf(1)
		for k, g := range truth {
			dr := event.DeltaR(j.P4, g.P4)
			if dr < bestDR {
				best, bestDR = k, dr
			}
		}
		out[i] = Match{Truth: best, DeltaR: bestDR, Matched: best >= 0 && bestDR < radius}
	}
	return out
}
