package event

import (
	"math"

	"go-hep.org/x/hep/fmom"
)

// Scale returns p multiplied component-wise by f.
func Scale(p fmom.PxPyPzE, f float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(p.P4.X*f, p.P4.Y*f, p.P4.Z*f, p.P4.T*f)
}

// FromPtPhi builds a transverse vector with E set to its pt, the convention
// used for MET.
func FromPtPhi(pt, phi float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(pt*math.Cos(phi), pt*math.Sin(phi), 0, pt)
}

// WithTransverse returns p with its px and py replaced and E reset to the new
// transverse magnitude.
func WithTransverse(p fmom.PxPyPzE, px, py float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(px, py, p.P4.Z, math.Hypot(px, py))
}

// DeltaR is the angular distance between two vectors in (eta, phi).
func DeltaR(a, b fmom.PxPyPzE) float64 {
	return fmom.DeltaR(&a, &b)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
