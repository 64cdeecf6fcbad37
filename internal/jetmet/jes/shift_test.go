package jes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/jetmet/internal/diag"
	"github.com/banshee-data/jetmet/internal/jetmet/jec"
	"github.com/banshee-data/jetmet/internal/testutil"
)

type evalFunc func(pt, eta float64, up bool) float64

func (f evalFunc) Uncertainty(pt, eta float64, up bool) float64 { return f(pt, eta, up) }

func ptEtaPhi(pt, eta, phi float64) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(pt*math.Cos(phi), pt*math.Sin(phi), pt*math.Sinh(eta), pt*math.Cosh(eta))
}

func TestLookupEta(t *testing.T) {
	tests := []struct {
		eta, want float64
	}{
		{0, 0},
		{5.4, 5.4},
		{-5.4, -5.4},
		{5.41, 5.39},
		{6.0, 5.39},
		{-6.0, -5.4},
		{-2.1, -2.1},
	}
	for _, tt := range tests {
		if got := LookupEta(tt.eta); got != tt.want {
			t.Errorf("LookupEta(%v) = %v, want %v", tt.eta, got, tt.want)
		}
	}
}

func TestShift_Sign(t *testing.T) {
	s := NewShifter(evalFunc(func(pt, eta float64, up bool) float64 { return 0.03 }), nil)
	jet := ptEtaPhi(100, 0.5, 0)
	up, ok := s.Shift(true, jet)
	assert.True(t, ok)
	assert.Equal(t, 0.03, up)
	down, ok := s.Shift(false, jet)
	assert.True(t, ok)
	assert.Equal(t, -0.03, down)
}

func TestShift_HistogramsUnsignedUncertainty(t *testing.T) {
	d := diag.New(diag.Options{})
	s := NewShifter(evalFunc(func(pt, eta float64, up bool) float64 { return 0.04 }), d)

	shift, _ := s.Shift(false, ptEtaPhi(80, 0.2, 0))
	assert.Equal(t, -0.04, shift)
	h := d.H2D(diag.JESCorrFac)
	assert.EqualValues(t, 1, h.Entries())
	testutil.AssertClose(t, "histogrammed uncertainty", h.YMean(), 0.04, 1e-12)
}

func TestShift_ForwardJetClamp(t *testing.T) {
	var seen float64
	s := NewShifter(evalFunc(func(pt, eta float64, up bool) float64 {
		seen = eta
		return 0.05
	}), nil)

	jet := ptEtaPhi(50, 6.0, 0.2)
	got, _ := s.Shift(true, jet)
	testutil.AssertClose(t, "lookup eta", seen, 5.39, 1e-12)
	assert.Equal(t, 0.05, got)

	s.Shift(false, ptEtaPhi(50, -6.0, 0.2))
	testutil.AssertClose(t, "lookup eta", seen, -5.4, 1e-12)
}

func TestShift_NaNGuard(t *testing.T) {
	d := diag.New(diag.Options{})
	s := NewShifter(evalFunc(func(pt, eta float64, up bool) float64 { return math.NaN() }), d)

	shift, ok := s.Shift(true, ptEtaPhi(30, 1, 0))
	assert.Equal(t, 0.0, shift)
	assert.False(t, ok)
	assert.Equal(t, 1, d.Guards()[diag.StageShifted])
	assert.EqualValues(t, 0, d.H2D(diag.JESCorrFac).Entries())
}

func TestShift_WithUncertaintyFile(t *testing.T) {
	u, err := jec.LoadUncertainty(testutil.Fixture(t, "Summer16_Uncertainty_AK4PFchs.txt"))
	require.NoError(t, err)
	d := diag.New(diag.Options{})
	s := NewShifter(u, d)

	// |eta| = 6 is outside the file but the clamp finds the last bin.
	jet := ptEtaPhi(100, 6.0, 0)
	shift, ok := s.Shift(true, jet)
	require.True(t, ok)
	testutil.AssertClose(t, "shift", shift, 0.035, 1e-9)

	scaled := 1 + 1*shift
	assert.Greater(t, jet.Pt()*scaled, jet.Pt())
	assert.EqualValues(t, 1, d.H2D(diag.JESCorrFac).Entries())
}
