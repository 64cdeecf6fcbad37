package jec

import (
	"errors"
	"strings"

	"github.com/banshee-data/jetmet/internal/failure"
)

// Required level counts: offset, relative and absolute for simulation, plus
// the residual for data.
const (
	DataLevels = 4
	MCLevels   = 3
)

// Corrector returns the total multiplicative correction for a raw jet.
// Implementations must be pure: the same inputs always give the same factor.
type Corrector interface {
	Correction(eta, pt, area, rho float64) float64
}

// CorrectorFunc adapts a function to Corrector.
type CorrectorFunc func(eta, pt, area, rho float64) float64

// Correction calls f.
func (f CorrectorFunc) Correction(eta, pt, area, rho float64) float64 {
	return f(eta, pt, area, rho)
}

// Factorized chains correction levels. Each level sees the pt already
// corrected by the levels before it and the result is the product.
type Factorized struct {
	levels []*Parameters
}

// NewFactorized builds a corrector from levels in application order.
func NewFactorized(levels ...*Parameters) (*Factorized, error) {
	if len(levels) == 0 {
		return nil, errors.New("at least one correction level is required")
	}
	for _, l := range levels {
		if l == nil {
			return nil, errors.New("nil correction level")
		}
	}
	return &Factorized{levels: levels}, nil
}

// LoadFactorized reads the ordered parameter files for data (4 files,
// including the residual) or simulation (3 files). A wrong count or an
// unreadable file is a FatalConfig error.
func LoadFactorized(paths []string, isData bool) (*Factorized, error) {
	want, mode := MCLevels, "MC"
	if isData {
		want, mode = DataLevels, "data"
	}
	if len(paths) != want {
		return nil, failure.Fatalf("jec", "check JEC %s filename vec, wrong size: %d (want %d)", mode, len(paths), want)
	}

	levels := make([]*Parameters, 0, len(paths))
	for _, path := range paths {
		p, err := LoadParameters(path)
		if err != nil {
			return nil, failure.Fatal("jec", err)
		}
		diagf("loaded %s level %s (%d bins) from %s", mode, p.Def.Level, len(p.Records), path)
		levels = append(levels, p)
	}
	return NewFactorized(levels...)
}

// Correction returns the product of all level corrections.
func (f *Factorized) Correction(eta, pt, area, rho float64) float64 {
	subs := f.SubCorrections(eta, pt, area, rho)
	return subs[len(subs)-1]
}

// SubCorrections returns the cumulative correction after each level:
// element i is the product of levels 0..i.
func (f *Factorized) SubCorrections(eta, pt, area, rho float64) []float64 {
	out := make([]float64, len(f.levels))
	total := 1.0
	for i, l := range f.levels {
		c := l.correction(inputs{eta: eta, pt: pt * total, area: area, rho: rho})
		total *= c
		out[i] = total
	}
	return out
}

// Levels returns the level names in application order.
func (f *Factorized) Levels() []string {
	names := make([]string, len(f.levels))
	for i, l := range f.levels {
		names[i] = l.Def.Level
	}
	return names
}

func (f *Factorized) String() string {
	return strings.Join(f.Levels(), "+")
}
