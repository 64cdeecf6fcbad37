package jer

import (
	"math"
	"math/rand/v2"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/jetmet/internal/diag"
	"github.com/banshee-data/jetmet/internal/event"
	"github.com/banshee-data/jetmet/internal/jetmet/restable"
)

// Options configures a Smearer.
type Options struct {
	Era    Era
	NSigma float64
	// Gaussian enables stochastic smearing of jets without a truth match.
	Gaussian bool
	Seed     uint64
	Diag     *diag.Set
}

// Smearer computes resolution smearing factors. It owns a random stream
// that advances across calls, so a Smearer must not be shared between
// goroutines; give each worker its own.
type Smearer struct {
	table    *restable.Table
	era      Era
	nSigma   float64
	gaussian bool
	src      rand.Source
	diag     *diag.Set
}

// NewSmearer builds a smearer over the simulated resolution table t. A nil
// or disabled table leaves unmatched jets unsmeared.
func NewSmearer(t *restable.Table, o Options) *Smearer {
	if t == nil {
		t = restable.Placeholder()
	}
	era := o.Era
	if era == 0 {
		era = Run2
	}
	return &Smearer{
		table:    t,
		era:      era,
		nSigma:   o.NSigma,
		gaussian: o.Gaussian,
		src:      rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15),
		diag:     o.Diag,
	}
}

// Smear returns the factor by which jet's four-momentum is scaled. match is
// the truth partner or nil. A non-finite result is replaced by 1 and
// reported through guarded; an out-of-range resolution bin is a FatalConfig
// error.
func (s *Smearer) Smear(v Variation, match *fmom.PxPyPzE, jet fmom.PxPyPzE, rho float64) (factor float64, guarded bool, err error) {
	pt := jet.Pt()
	c := ScaleFactor(math.Abs(jet.Eta()), v, s.era, s.nSigma)

	if match != nil {
		if pt > 50 {
			s.diag.Fill(diag.Smear50Miss, -1)
		}
		truthPt := match.Pt()
		corrected := math.Max(0, truthPt+c*(pt-truthPt))
		if math.IsNaN(corrected) {
			opsf("NaN corrected pt for matched jet pt=%.3f truth=%.3f", pt, truthPt)
		}
		factor = corrected / pt
		s.diag.Fill(diag.SmearJetGenJetPtDiff, pt-truthPt)
		s.diag.Fill(diag.SmearJetGenJetPtRatio, pt/truthPt)
		s.diag.Fill2(diag.SmearJetGenJetPtRatioEta, pt/truthPt, jet.Eta())
	} else {
		if pt > 50 {
			s.diag.Fill(diag.Smear50Miss, 1)
		}
		if !s.gaussian {
			return 1, false, nil
		}
		factor, err = s.gaussianFactor(c, jet, rho)
		if err != nil {
			return 1, false, err
		}
	}

	if !event.IsFinite(factor) {
		opsf("non-finite smearing factor %v for jet pt=%.3f eta=%.3f, using 1", factor, pt, jet.Eta())
		s.diag.Guard(diag.StageSmeared)
		return 1, true, nil
	}
	tracef("%s c=%.4f pt=%.3f matched=%t factor=%.5f", v, c, pt, match != nil, factor)
	return factor, false, nil
}

func (s *Smearer) gaussianFactor(c float64, jet fmom.PxPyPzE, rho float64) (float64, error) {
	if !s.table.Enabled() {
		return 1, nil
	}
	bin, err := s.table.Bin(math.Abs(jet.Eta()), rho)
	if err != nil {
		return 1, err
	}
	f := s.table.Func(bin)
	if f == nil {
		return 1, nil
	}
	pt := jet.Pt()
	sigmaMC := f.Eval(f.Clip(pt)) * pt
	if math.IsNaN(sigmaMC) {
		opsf("NaN simulated resolution in bin %d for pt=%.3f", bin, pt)
	}
	if c*c <= 1 {
		return 1, nil
	}
	width := math.Sqrt(c*c-1) * sigmaMC
	n := distuv.Normal{Mu: 0, Sigma: width, Src: s.src}
	smeared := pt + n.Rand()
	return smeared / pt, nil
}

// GaussianWidth returns the width of the stochastic smearing applied to an
// unmatched jet: sqrt(c²-1) times the simulated resolution. It is 0 when no
// smearing would be applied.
func (s *Smearer) GaussianWidth(v Variation, jet fmom.PxPyPzE, rho float64) (float64, error) {
	if !s.gaussian || !s.table.Enabled() {
		return 0, nil
	}
	c := ScaleFactor(math.Abs(jet.Eta()), v, s.era, s.nSigma)
	if c*c <= 1 {
		return 0, nil
	}
	bin, err := s.table.Bin(math.Abs(jet.Eta()), rho)
	if err != nil {
		return 0, err
	}
	f := s.table.Func(bin)
	if f == nil {
		return 0, nil
	}
	pt := jet.Pt()
	return math.Sqrt(c*c-1) * f.Eval(f.Clip(pt)) * pt, nil
}
