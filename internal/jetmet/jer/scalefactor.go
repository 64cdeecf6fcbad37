// Package jer applies jet energy resolution smearing to simulated jets so
// that their resolution matches the one measured in data.
//
// Matched jets are scaled towards or away from their truth partner by the
// data/simulation resolution ratio. Unmatched jets are optionally smeared
// stochastically using the simulated resolution read by restable.
package jer

import (
	"fmt"
	"strings"
)

// Variation selects the central scale factor or one of its one-sided
// uncertainty variations.
type Variation int

const (
	Better  Variation = -1
	Central Variation = 0
	Worse   Variation = 1
)

func (v Variation) String() string {
	switch v {
	case Better:
		return "better"
	case Central:
		return "central"
	case Worse:
		return "worse"
	default:
		return fmt.Sprintf("variation(%d)", int(v))
	}
}

// Era selects the scale-factor table.
type Era int

const (
	// Run1 is the low-granularity table with separate central, better and
	// worse values.
	Run1 Era = iota + 1
	// Run2 is the 2016 table: central value plus a symmetric error.
	Run2
)

// ParseEra accepts "run1" or "run2".
func ParseEra(s string) (Era, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "run1":
		return Run1, nil
	case "run2":
		return Run2, nil
	}
	return 0, fmt.Errorf("unknown era %q (want run1 or run2)", s)
}

func (e Era) String() string {
	switch e {
	case Run1:
		return "run1"
	case Run2:
		return "run2"
	default:
		return fmt.Sprintf("era(%d)", int(e))
	}
}

var (
	run1Edges   = []float64{0.5, 1.1, 1.7, 2.3, 5.0}
	run1Central = []float64{1.052, 1.057, 1.096, 1.134, 1.288}
	run1Better  = []float64{0.990, 1.001, 1.032, 1.042, 1.089}
	run1Worse   = []float64{1.115, 1.114, 1.161, 1.228, 1.488}

	run2Edges = []float64{0, 0.5, 0.8, 1.1, 1.3, 1.7, 1.9, 2.1, 2.3, 2.5, 2.8, 3.0, 3.2, 5.0}
	run2Val   = []float64{1.109, 1.138, 1.114, 1.123, 1.084, 1.082, 1.140, 1.067, 1.177, 1.364, 1.857, 1.328, 1.16}
	run2Err   = []float64{0.008, 0.013, 0.013, 0.024, 0.011, 0.035, 0.047, 0.053, 0.041, 0.039, 0.071, 0.022, 0.029}
)

// ScaleFactor returns the data/simulation resolution ratio c for a jet at
// absEta. nSigma scales the Run2 error; the Run1 table carries fixed
// variations. Outside the tabulated range the factor is 1.
func ScaleFactor(absEta float64, v Variation, era Era, nSigma float64) float64 {
	switch era {
	case Run1:
		table := run1Central
		switch v {
		case Better:
			table = run1Better
		case Worse:
			table = run1Worse
		}
		for i, hi := range run1Edges {
			if absEta < hi {
				return table[i]
			}
		}
		return 1
	case Run2:
		for i := 0; i+1 < len(run2Edges); i++ {
			if absEta >= run2Edges[i] && absEta < run2Edges[i+1] {
				return run2Val[i] + float64(v)*nSigma*run2Err[i]
			}
		}
		return 1
	}
	return 1
}
