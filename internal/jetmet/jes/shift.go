// Package jes applies one-sided jet energy scale shifts.
package jes

import (
	"math"

	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/jetmet/internal/diag"
)

// Beyond |eta| 5.4 the uncertainty is looked up just inside the table edge.
const (
	etaLimit    = 5.4
	etaClampPos = 5.39
	etaClampNeg = -5.4
)

// Evaluator returns the fractional scale uncertainty of a jet. jec.Uncertainty
// implements it.
type Evaluator interface {
	Uncertainty(pt, eta float64, up bool) float64
}

// Shifter turns uncertainties into signed per-jet shifts.
type Shifter struct {
	eval Evaluator
	diag *diag.Set
}

// NewShifter returns a Shifter reading uncertainties from e.
func NewShifter(e Evaluator, d *diag.Set) *Shifter {
	return &Shifter{eval: e, diag: d}
}

// LookupEta returns the eta at which the uncertainty is evaluated.
func LookupEta(eta float64) float64 {
	if math.Abs(eta) > etaLimit {
		if eta > 0 {
			return etaClampPos
		}
		return etaClampNeg
	}
	return eta
}

// Shift returns +u for an upward shift and -u for a downward one, where u is
// the uncertainty at the jet's (pt, eta). A NaN uncertainty gives a zero
// shift and ok == false.
func (s *Shifter) Shift(up bool, jet fmom.PxPyPzE) (shift float64, ok bool) {
	pt := jet.Pt()
	eta := LookupEta(jet.Eta())
	u := s.eval.Uncertainty(pt, eta, up)
	if math.IsNaN(u) {
		opsf("NaN scale uncertainty for pt=%.3f eta=%.3f, no shift applied", pt, eta)
		s.diag.Guard(diag.StageShifted)
		return 0, false
	}
	s.diag.Fill2(diag.JESCorrFac, pt, u)
	shift = u
	if !up {
		shift = -u
	}
	tracef("pt=%.3f eta=%.3f up=%t shift=%.5f", pt, eta, up, shift)
	return shift, true
}
