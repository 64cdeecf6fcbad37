// Package diag accumulates the diagnostic histograms filled while jets and
// MET are modified, together with per-stage counts of numeric guards that
// fired. A Set is an explicit context passed to the engines; a nil *Set is
// valid and records nothing.
package diag

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go-hep.org/x/hep/hbook"
)

// Histogram names.
const (
	JESCorrFac               = "JEScorrfac"
	JESMETDiff               = "JESmetdiff"
	JESJetPhiDiff            = "JESjetphidiff"
	JESJetEtaDiff            = "JESjetetadiff"
	SmearPtDiff              = "Smearptdiff"
	Smear50Miss              = "Smear50miss"
	SmearJetGenJetPtDiff     = "Smearjetgenjetptdiff"
	SmearGenMinDR            = "Smeargenmindr"
	SmearJetGenJetPtRatio    = "Smearjetgenjetptratio"
	SmearJetGenJetPtRatioEta = "Smearjetgenjetptratioetabin"
	METPtBefore              = "METptbefore"
	METPtAfter               = "METptafter"
)

// Guard stages.
const (
	StageRaw        = "raw"
	StageCalibrated = "calibrated"
	StageSmeared    = "smeared"
	StageShifted    = "shifted"
	StageMET        = "met"
)

type h1def struct {
	name   string
	n      int
	lo, hi float64
}

var h1defs = []h1def{
	{JESMETDiff, 1000, -10, 10},
	{JESJetPhiDiff, 1000, -10, 10},
	{JESJetEtaDiff, 1000, -10, 10},
	{SmearPtDiff, 2000, -10, 10},
	{Smear50Miss, 20, -10, 10},
	{SmearJetGenJetPtDiff, 600, -30, 30},
	{SmearGenMinDR, 1000, 0, 10},
	{SmearJetGenJetPtRatio, 100, 0, 10},
	{METPtBefore, 200, 0, 1000},
	{METPtAfter, 200, 0, 1000},
}

// Options selects optional histogram groups.
type Options struct {
	// ResolutionMeasurement books the reco/truth pt ratio histograms per
	// (|eta|, truth pt) bin.
	ResolutionMeasurement bool
}

// Set holds every histogram of a run. Fill methods are safe for concurrent
// use.
type Set struct {
	mu     sync.Mutex
	h1     map[string]*hbook.H1D
	h2     map[string]*hbook.H2D
	res    [][]*hbook.H1D
	guards map[string]int
}

// New books the histograms.
func New(o Options) *Set {
	s := &Set{
		h1:     make(map[string]*hbook.H1D, len(h1defs)),
		h2:     make(map[string]*hbook.H2D, 2),
		guards: make(map[string]int),
	}
	for _, d := range h1defs {
		h := hbook.NewH1D(d.n, d.lo, d.hi)
		h.Annotation()["name"] = d.name
		s.h1[d.name] = h
	}
	s.h2[JESCorrFac] = hbook.NewH2D(1000, 0, 1000, 1000, -0.3, 0.3)
	s.h2[SmearJetGenJetPtRatioEta] = hbook.NewH2D(100, 0, 10, 100, -5, 5)
	for name, h := range s.h2 {
		h.Annotation()["name"] = name
	}

	if o.ResolutionMeasurement {
		s.res = make([][]*hbook.H1D, len(ResolutionEtaLabels))
		pts := ResolutionPtLabels()
		for i, eta := range ResolutionEtaLabels {
			s.res[i] = make([]*hbook.H1D, len(pts))
			for j, pt := range pts {
				h := hbook.NewH1D(300, 0, 3)
				h.Annotation()["name"] = fmt.Sprintf("recogenjetptratio_%s_%s", eta, pt)
				s.res[i][j] = h
			}
		}
	}
	return s
}

// Fill adds x with unit weight to the 1D histogram name. Unknown names and
// non-finite values are ignored.
func (s *Set) Fill(name string, x float64) {
	if s == nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.h1[name]; ok {
		h.Fill(x, 1)
	}
}

// Fill2 adds (x, y) with unit weight to the 2D histogram name.
func (s *Set) Fill2(name string, x, y float64) {
	if s == nil || math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.h2[name]; ok {
		h.Fill(x, y, 1)
	}
}

// FillResolution records the reco/truth pt ratio of a matched jet. It is a
// no-op unless the resolution measurement was booked.
func (s *Set) FillResolution(absEta, truthPt, ratio float64) {
	if s == nil || s.res == nil {
		return
	}
	i, j := ResolutionEtaBin(absEta), ResolutionPtBin(truthPt)
	if i < 0 || j < 0 || math.IsNaN(ratio) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res[i][j].Fill(ratio, 1)
}

// Guard counts one numeric guard firing at stage.
func (s *Set) Guard(stage string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.guards[stage]++
	s.mu.Unlock()
}

// Guards returns a copy of the guard counts per stage.
func (s *Set) Guards() map[string]int {
	out := make(map[string]int)
	if s == nil {
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.guards {
		out[k] = v
	}
	return out
}

// H1D returns the named 1D histogram, or nil. The histogram must not be
// filled concurrently with reading it.
func (s *Set) H1D(name string) *hbook.H1D {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h1[name]
}

// H2D returns the named 2D histogram, or nil.
func (s *Set) H2D(name string) *hbook.H2D {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h2[name]
}

// Resolution returns the resolution-measurement histogram for the given
// bin indices, or nil when not booked.
func (s *Set) Resolution(etaBin, ptBin int) *hbook.H1D {
	if s == nil || s.res == nil || etaBin < 0 || etaBin >= len(s.res) || ptBin < 0 || ptBin >= len(s.res[etaBin]) {
		return nil
	}
	return s.res[etaBin][ptBin]
}

// Names returns the booked 1D histogram names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.h1))
	for n := range s.h1 {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Names2D returns the booked 2D histogram names in sorted order.
func (s *Set) Names2D() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.h2))
	for n := range s.h2 {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolutionHistograms returns the booked resolution-measurement histograms
// in (|eta| bin, truth pt bin) order, or nil when the measurement is off.
func (s *Set) ResolutionHistograms() []*hbook.H1D {
	if s == nil || s.res == nil {
		return nil
	}
	var out []*hbook.H1D
	for _, row := range s.res {
		out = append(out, row...)
	}
	return out
}

// filled2D reports whether any in-range bin of h carries weight.
func filled2D(h *hbook.H2D) bool {
	bins := h.Binning.Bins
	for i := range bins {
		if bins[i].SumW() != 0 {
			return true
		}
	}
	return false
}
