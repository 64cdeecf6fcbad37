package jetmet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/jetmet/internal/event"
	"github.com/banshee-data/jetmet/internal/jetmet/jer"
)

func TestParseSystematic(t *testing.T) {
	for s, name := range systematicNames {
		got, err := ParseSystematic(name)
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Equal(t, name, s.String())
	}
	got, err := ParseSystematic("")
	require.NoError(t, err)
	assert.Equal(t, SystNone, got)
	got, err = ParseSystematic(" JES_UP ")
	require.NoError(t, err)
	assert.Equal(t, JESUp, got)
	_, err = ParseSystematic("jes_sideways")
	assert.Error(t, err)
}

func TestParseCorrections(t *testing.T) {
	cs, err := ParseCorrections([]string{"jec_data", "type1_met"})
	require.NoError(t, err)
	assert.Equal(t, Corrections{JECData, Type1MET}, cs)
	assert.True(t, cs.Has(Type1MET))
	assert.False(t, cs.Has(SmearMC))
	assert.Equal(t, "jec_data,type1_met", cs.String())

	_, err = ParseCorrections([]string{"jec_data", "l4"})
	assert.Error(t, err)
}

func TestConfigPredicates(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		active    bool
		recal     bool
		smear     bool
		variation jer.Variation
	}{
		{"data nothing", Config{IsData: true}, false, false, false, jer.Central},
		{"data jec", Config{IsData: true, Corrections: Corrections{JECData}}, true, true, false, jer.Central},
		{"data type1", Config{IsData: true, Corrections: Corrections{Type1MET}}, true, true, false, jer.Central},
		{"data ignores mc corrections", Config{IsData: true, Corrections: Corrections{JECMC, SmearMC}}, false, false, false, jer.Central},
		{"mc nothing", Config{}, true, false, false, jer.Central},
		{"mc jec", Config{Corrections: Corrections{JECMC}}, true, true, false, jer.Central},
		{"mc smear", Config{Corrections: Corrections{SmearMC}}, true, false, true, jer.Central},
		{"mc jer better wins", Config{Corrections: Corrections{SmearMC}, Systematic: JERBetter}, true, false, true, jer.Better},
		{"mc jer worse alone", Config{Systematic: JERWorse}, true, false, true, jer.Worse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.cfg.Active())
			assert.Equal(t, tt.recal, tt.cfg.Recalibrates())
			v, smear := tt.cfg.jerVariation()
			assert.Equal(t, tt.smear, smear)
			assert.Equal(t, tt.variation, v)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, 0.0, c.NSigma, "zero sigma is a valid request")
	assert.Equal(t, jer.Run2, c.Era)
	assert.Equal(t, "pfJetsPFlow", c.JetLabel)
	assert.Equal(t, "genJets", c.GenJetLabel)
	assert.Equal(t, "pfMetType1", c.METLabel)
	assert.Equal(t, DefaultMatchRadius, c.MatchRadius)

	c = Config{NSigma: 2, MatchRadius: 0.3}.WithDefaults()
	assert.Equal(t, 2.0, c.NSigma)
	assert.Equal(t, 0.3, c.MatchRadius)
}

func TestMatchTruth(t *testing.T) {
	jets := []*event.Jet{
		{P4: ptEtaPhi(50, 0, 0)},
		{P4: ptEtaPhi(50, 0, 0.1)},
		{P4: ptEtaPhi(50, 2, 2)},
	}
	truth := []*event.GenJet{
		{P4: ptEtaPhi(45, 2.5, 2)},
		{P4: ptEtaPhi(48, 0, 0.05)},
	}
	got := MatchTruth(jets, truth, 0.4)
	require.Len(t, got, 3)

	// Both of the first two jets pick the same truth jet.
	assert.Equal(t, 1, got[0].Truth)
	assert.Equal(t, 1, got[1].Truth)
	assert.True(t, got[0].Matched)
	assert.True(t, got[1].Matched)
	assert.InDelta(t, 0.05, got[0].DeltaR, 1e-9)

	assert.Equal(t, 0, got[2].Truth)
	assert.False(t, got[2].Matched, "ΔR 0.5 is outside the cone")

	none := MatchTruth(jets, nil, 0.4)
	for _, m := range none {
		assert.Equal(t, -1, m.Truth)
		assert.False(t, m.Matched)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "raw", StageRaw.String())
	assert.Equal(t, "final", StageFinal.String())
}
