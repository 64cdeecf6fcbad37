package event

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"
)

func TestRawRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		p4     fmom.PxPyPzE
		uncorr float64
	}{
		{"central jet", fmom.NewPxPyPzE(60, 80, 30, 110), 95},
		{"forward jet", fmom.NewPxPyPzE(-20, 5, 400, 420), 380},
		{"correction below one", fmom.NewPxPyPzE(10, 0, 0, 10), 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Jet{P4: tt.p4, UncorrectedEnergy: tt.uncorr}
			raw := j.Raw()
			if math.Abs(raw.E()-tt.uncorr) > 1e-9 {
				t.Errorf("raw.E() = %v, want %v", raw.E(), tt.uncorr)
			}
			// direction is preserved
			if math.Abs(raw.Eta()-j.P4.Eta()) > 1e-9 {
				t.Errorf("raw eta = %v, want %v", raw.Eta(), j.P4.Eta())
			}
		})
	}
}

func TestScaleAndTransverse(t *testing.T) {
	p := fmom.NewPxPyPzE(3, 4, 12, 13)
	s := Scale(p, 2)
	assert.Equal(t, fmom.NewPxPyPzE(6, 8, 24, 26), s)
	assert.InDelta(t, 10.0, s.Pt(), 1e-12)

	m := WithTransverse(p, 6, 8)
	assert.InDelta(t, 10.0, m.E(), 1e-12)
	assert.Equal(t, 12.0, m.Pz())

	v := FromPtPhi(5, math.Pi/2)
	assert.InDelta(t, 0.0, v.Px(), 1e-12)
	assert.InDelta(t, 5.0, v.Py(), 1e-12)
	assert.InDelta(t, 5.0, v.E(), 1e-12)
}

func TestDeltaR(t *testing.T) {
	a := fmom.NewPxPyPzE(10, 0, 0, 10)
	b := fmom.NewPxPyPzE(0, 10, 0, 10)
	assert.InDelta(t, math.Pi/2, DeltaR(a, b), 1e-9)
	assert.InDelta(t, 0.0, DeltaR(a, a), 1e-12)
}

func TestCollectionsMissing(t *testing.T) {
	ev := &Event{}

	_, err := ev.JetCollection("pfJetsPFlow")
	assert.True(t, errors.Is(err, ErrMissingCollection))
	_, err = ev.GenJetCollection("genJets")
	assert.True(t, errors.Is(err, ErrMissingCollection))
	_, err = ev.FirstMET("pfMetType1")
	assert.True(t, errors.Is(err, ErrMissingCollection))
	_, err = ev.Candidate("pfMetUnclusteredEnUp")
	assert.True(t, errors.Is(err, ErrMissingCollection))

	met := &MET{}
	_, err = met.ShiftedMET("NoShift")
	assert.True(t, errors.Is(err, ErrMissingCollection))
}

func TestFirstMETPicksFirst(t *testing.T) {
	first := &MET{SumEt: 1}
	ev := &Event{METs: map[string][]*MET{"pfMet": {first, {SumEt: 2}}}}
	got, err := ev.FirstMET("pfMet")
	require.NoError(t, err)
	assert.Same(t, first, got)

	ev.METs["empty"] = nil
	_, err = ev.FirstMET("empty")
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	in := &Event{
		Run: 273158, Lumi: 12, Number: 998877,
		JetRho: 14.2,
		Jets: map[string][]*Jet{
			"pfJetsPFlow": {{ID: 0, P4: fmom.NewPxPyPzE(1, 2, 3, 4), UncorrectedEnergy: 3.5, Area: 0.5}},
		},
		GenJets: map[string][]*GenJet{"genJets": {{ID: 0, P4: fmom.NewPxPyPzE(1, 2, 3, 4)}}},
		METs: map[string][]*MET{
			"pfMetType1": {{P4: fmom.NewPxPyPzE(5, 0, 0, 5), SumEt: 300, Significance: 2,
				Shifted: map[string]BasicMET{"NoShift": {Px: 5, SumEt: 300}}}},
		},
		Candidates: map[string]*Candidate{"pfMetUnclusteredEnUp": {Pt: 6, Phi: 0.1, E: 6}},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(in))
	require.NoError(t, w.Write(in))

	r := NewReader(strings.NewReader("\n" + buf.String()))
	for i := 0; i < 2; i++ {
		out, err := r.Next()
		require.NoError(t, err)
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("event %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCodecFourMomentumShape(t *testing.T) {
	ev := &Event{
		Jets:    map[string][]*Jet{"pfJetsPFlow": {{P4: fmom.NewPxPyPzE(1, 2, 3, 4), Area: 0.5}}},
		GenJets: map[string][]*GenJet{"genJets": {{ID: 7, P4: fmom.NewPxPyPzE(-1, 0.5, 0, 2)}}},
		METs:    map[string][]*MET{"pfMetType1": {{P4: fmom.NewPxPyPzE(3, 4, 0, 5), SumEt: 10}}},
	}
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write(ev))
	line := buf.String()

	assert.Contains(t, line, `"p4":[1,2,3,4]`)
	assert.Contains(t, line, `"p4":[-1,0.5,0,2]`)
	assert.Contains(t, line, `"p4":[3,4,0,5]`)
	assert.NotContains(t, line, `"P4"`)

	in := `{"jets":{"pf":[{"id":1,"p4":[6,8,0,10],"uncorrected_energy":9,"area":0.4}]},` +
		`"mets":{"met":[{"p4":[1,1,0,1.5],"sum_et":20}]}}`
	got, err := NewReader(strings.NewReader(in)).Next()
	require.NoError(t, err)
	jet := got.Jets["pf"][0]
	assert.Equal(t, fmom.NewPxPyPzE(6, 8, 0, 10), jet.P4)
	assert.Equal(t, 9.0, jet.UncorrectedEnergy)
	assert.InDelta(t, 10.0, jet.P4.Pt(), 1e-12)
	assert.Equal(t, 20.0, got.METs["met"][0].SumEt)
}

func TestReaderReportsLine(t *testing.T) {
	r := NewReader(strings.NewReader("{\"run\":1}\n{not json}\n"))
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestBasicMETPt(t *testing.T) {
	assert.InDelta(t, 5.0, BasicMET{Px: 3, Py: -4}.Pt(), 1e-12)
}
