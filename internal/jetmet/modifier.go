// Package jetmet re-derives jet and MET quantities for one event at a time:
// it removes each jet's existing calibration, applies a new one, smears
// simulated jets, applies the requested systematic shift and propagates
// every change into the event MET.
package jetmet

import (
	"errors"
	"math"

	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/jetmet/internal/diag"
	"github.com/banshee-data/jetmet/internal/event"
	"github.com/banshee-data/jetmet/internal/failure"
	"github.com/banshee-data/jetmet/internal/jetmet/jec"
	"github.com/banshee-data/jetmet/internal/jetmet/jer"
	"github.com/banshee-data/jetmet/internal/jetmet/jes"
)

// Labels of the unclustered-energy inputs. Run1 events carry standalone
// candidates, Run2 events carry shifted MET values on the MET object.
const (
	CandidateUESUp   = "pfMetUnclusteredEnUp"
	CandidateUESDown = "pfMetUnclusteredEnDown"
	ShiftedUESUp     = "UnclusteredEnUp"
	ShiftedUESDown   = "UnclusteredEnDown"
	ShiftedNoShift   = "NoShift"
)

// Config selects what a Modifier does to each event.
type Config struct {
	IsData      bool
	Corrections Corrections
	Systematic  Systematic
	// NSigma scales the JES shift and the Run2 JER error.
	NSigma float64
	// Era selects the JER table and the UES input layout.
	Era jer.Era
	// GaussianSmearing smears jets without a truth match.
	GaussianSmearing bool
	Seed             uint64

	JetLabel    string
	GenJetLabel string
	METLabel    string
	MatchRadius float64
}

// WithDefaults fills unset fields. NSigma is left alone: zero is a valid
// request for an unshifted JES pass.
func (c Config) WithDefaults() Config {
	if c.Era == 0 {
		c.Era = jer.Run2
	}
	if c.JetLabel == "" {
		c.JetLabel = "pfJetsPFlow"
	}
	if c.GenJetLabel == "" {
		c.GenJetLabel = "genJets"
	}
	if c.METLabel == "" {
		c.METLabel = "pfMetType1"
	}
	if c.MatchRadius == 0 {
		c.MatchRadius = DefaultMatchRadius
	}
	return c
}

// Recalibrates reports whether jets get a new calibration.
func (c Config) Recalibrates() bool {
	if c.IsData {
		return c.Corrections.Has(JECData) || c.Corrections.Has(Type1MET)
	}
	return c.Corrections.Has(JECMC)
}

// Active reports whether events are modified at all. Data without jec_data
// or type1_met passes through untouched.
func (c Config) Active() bool {
	return !c.IsData || c.Corrections.Has(JECData) || c.Corrections.Has(Type1MET)
}

// jerVariation returns the smearing variation and whether smearing applies.
// A JER systematic takes precedence over plain central smearing.
func (c Config) jerVariation() (jer.Variation, bool) {
	switch {
	case c.IsData:
		return jer.Central, false
	case c.Systematic == JERBetter:
		return jer.Better, true
	case c.Systematic == JERWorse:
		return jer.Worse, true
	case c.Corrections.Has(SmearMC):
		return jer.Central, true
	}
	return jer.Central, false
}

// JetRecord traces one jet through the stages of processing.
type JetRecord struct {
	Index         int
	Stages        [StageFinal + 1]fmom.PxPyPzE
	OldCorrection float64
	NewCorrection float64
	SmearFactor   float64
	Shift         float64
	Match         Match
}

// At returns the jet four-momentum after stage s.
func (r *JetRecord) At(s Stage) fmom.PxPyPzE { return r.Stages[s] }

// Summary describes what Process did to an event.
type Summary struct {
	Run    uint32
	Lumi   uint32
	Event  uint64
	IsData bool
	// Skipped is set when the configuration leaves the event untouched.
	Skipped bool
	Jets    []JetRecord

	METBefore fmom.PxPyPzE
	// METAfterJets is the MET once the jet loop is done, before any
	// unclustered-energy shift.
	METAfterJets fmom.PxPyPzE
	METAfter     fmom.PxPyPzE

	// JetDeltaPx and JetDeltaPy sum the per-jet momentum changes folded into
	// the MET.
	JetDeltaPx float64
	JetDeltaPy float64

	SumEtBefore float64
	SumEtDiff   float64
	SigBefore   float64
	SigAfter    float64
	Guards      int
}

// Modifier applies a Config to events. A Modifier holds its own random
// stream and must be used from a single goroutine.
type Modifier struct {
	cfg       Config
	corrector jec.Corrector
	smearer   *jer.Smearer
	shifter   *jes.Shifter
	diag      *diag.Set
}

// NewModifier validates that every engine the configuration needs is
// present.
func NewModifier(cfg Config, c jec.Corrector, sm *jer.Smearer, sh *jes.Shifter, d *diag.Set) (*Modifier, error) {
	cfg = cfg.WithDefaults()
	if cfg.Recalibrates() && c == nil {
		return nil, failure.Fatal("jetmet", errors.New("recalibration requested but no corrector configured"))
	}
	if _, smear := cfg.jerVariation(); smear && sm == nil {
		return nil, failure.Fatal("jetmet", errors.New("smearing requested but no smearer configured"))
	}
	if cfg.Systematic.IsJES() && sh == nil {
		return nil, failure.Fatal("jetmet", errors.New("JES systematic requested but no uncertainty configured"))
	}
	return &Modifier{cfg: cfg, corrector: c, smearer: sm, shifter: sh, diag: d}, nil
}

// Config returns the effective configuration.
func (m *Modifier) Config() Config { return m.cfg }

// Process modifies ev in place. Missing required collections are
// FatalConfig errors and leave the event unchanged.
func (m *Modifier) Process(ev *event.Event) (*Summary, error) {
	sum := &Summary{Run: ev.Run, Lumi: ev.Lumi, Event: ev.Number, IsData: m.cfg.IsData}
	if !m.cfg.Active() {
		sum.Skipped = true
		return sum, nil
	}

	jets, err := ev.JetCollection(m.cfg.JetLabel)
	if err != nil {
		return nil, failure.Fatal("jetmet", err)
	}
	met, err := ev.FirstMET(m.cfg.METLabel)
	if err != nil {
		return nil, failure.Fatal("jetmet", err)
	}
	var truth []*event.GenJet
	var matches []Match
	if !m.cfg.IsData {
		truth, err = ev.GenJetCollection(m.cfg.GenJetLabel)
		if err != nil {
			return nil, failure.Fatal("jetmet", err)
		}
		matches = MatchTruth(jets, truth, m.cfg.MatchRadius)
	}
	ues, err := m.uesInputs(ev, met)
	if err != nil {
		return nil, err
	}

	sum.METBefore = met.P4
	sum.SumEtBefore = met.SumEt
	sum.SigBefore = met.Significance

	// Compute everything before writing so that a fatal smearing error
	// leaves the event untouched.
	finals := make([]fmom.PxPyPzE, len(jets))
	sum.Jets = make([]JetRecord, len(jets))
	for i, jet := range jets {
		rec := &sum.Jets[i]
		rec.Index = i
		if matches != nil {
			rec.Match = matches[i]
		}
		if err := m.processJet(ev, jet, truth, rec, &sum.Guards); err != nil {
			return nil, err
		}
		finals[i] = rec.Stages[StageFinal]
	}

	newMET := met.P4
	sumEtDiff := 0.0
	for i, jet := range jets {
		old, cur := jet.P4, finals[i]
		jet.P4 = cur

		sumEtDiff += cur.Pt() - old.Pt()
		dpx := cur.Px() - old.Px()
		dpy := cur.Py() - old.Py()
		if math.IsNaN(dpx) {
			m.guard(diag.StageMET, &sum.Guards, "NaN dpx for jet %d", i)
			dpx = 0
		}
		if math.IsNaN(dpy) {
			m.guard(diag.StageMET, &sum.Guards, "NaN dpy for jet %d", i)
			dpy = 0
		}
		sum.JetDeltaPx += dpx
		sum.JetDeltaPy += dpy
		newMET = event.WithTransverse(newMET, newMET.Px()-dpx, newMET.Py()-dpy)
	}
	sum.METAfterJets = newMET

	if ues != nil {
		newMET, sumEtDiff = ues.apply(newMET, sumEtDiff)
	}

	oldPt := met.P4.Pt()
	met.P4 = newMET
	met.SumEt += sumEtDiff
	if oldPt > 0 {
		met.Significance = met.Significance * newMET.Pt() / oldPt
	}

	sum.METAfter = met.P4
	sum.SumEtDiff = sumEtDiff
	sum.SigAfter = met.Significance

	m.diag.Fill(diag.JESMETDiff, newMET.E()-sum.METBefore.E())
	m.diag.Fill(diag.METPtBefore, oldPt)
	m.diag.Fill(diag.METPtAfter, newMET.Pt())
	tracef("event %d:%d:%d met %.3f -> %.3f sumEt %+.3f", ev.Run, ev.Lumi, ev.Number, oldPt, newMET.Pt(), sumEtDiff)
	return sum, nil
}

func (m *Modifier) processJet(ev *event.Event, jet *event.Jet, truth []*event.GenJet, rec *JetRecord, guards *int) error {
	old := jet.P4
	rec.Stages[StageBefore] = old

	oldcor := jet.CorrectionFactor()
	if !event.IsFinite(oldcor) || oldcor == 0 {
		m.guard(diag.StageRaw, guards, "jet %d: correction factor %v (E=%.3f uncorrected=%.3f), using 1", rec.Index, oldcor, old.E(), jet.UncorrectedEnergy)
		oldcor = 1
	}
	raw := event.Scale(old, 1/oldcor)
	rec.Stages[StageRaw] = raw
	rec.OldCorrection = oldcor

	newcor := oldcor
	if m.cfg.Recalibrates() {
		newcor = m.corrector.Correction(raw.Eta(), raw.Pt(), jet.Area, ev.JetRho)
		if !event.IsFinite(newcor) {
			m.guard(diag.StageCalibrated, guards, "jet %d: correction %v, keeping %.4f", rec.Index, newcor, oldcor)
			newcor = oldcor
		}
	}
	rec.NewCorrection = newcor
	cur := event.Scale(old, newcor/oldcor)
	rec.Stages[StageCalibrated] = cur

	rec.SmearFactor = 1
	if v, ok := m.cfg.jerVariation(); ok {
		var match *fmom.PxPyPzE
		if rec.Match.Matched {
			p := truth[rec.Match.Truth].P4
			match = &p
			m.diag.FillResolution(math.Abs(cur.Eta()), p.Pt(), cur.Pt()/p.Pt())
		}
		if rec.Match.Truth >= 0 {
			m.diag.Fill(diag.SmearGenMinDR, rec.Match.DeltaR)
		}
		f, guarded, err := m.smearer.Smear(v, match, cur, ev.JetRho)
		if err != nil {
			return err
		}
		if guarded {
			*guards++
		}
		rec.SmearFactor = f
		before := cur
		cur = event.Scale(cur, f)
		m.diag.Fill(diag.SmearPtDiff, cur.Pt()-before.Pt())
	}
	rec.Stages[StageSmeared] = cur

	if m.cfg.Systematic.IsJES() {
		shift, ok := m.shifter.Shift(m.cfg.Systematic == JESUp, cur)
		if !ok {
			*guards++
		}
		rec.Shift = shift
		prev := cur
		cur = event.Scale(cur, 1+m.cfg.NSigma*rec.Shift)
		m.diag.Fill(diag.JESJetPhiDiff, cur.Phi()-prev.Phi())
		m.diag.Fill(diag.JESJetEtaDiff, cur.Eta()-prev.Eta())
	}
	rec.Stages[StageFinal] = cur

	tracef("jet %d: pt %.3f raw %.3f cal %.3f smear %.3f final %.3f", rec.Index,
		old.Pt(), raw.Pt(), rec.Stages[StageCalibrated].Pt(), rec.Stages[StageSmeared].Pt(), cur.Pt())
	return nil
}

func (m *Modifier) guard(stage string, count *int, format string, args ...interface{}) {
	opsf(format, args...)
	m.diag.Guard(stage)
	*count++
}

// uesShift is the unclustered-energy input resolved for one event.
type uesShift struct {
	candidate       *event.Candidate
	shifted, center event.BasicMET
}

func (u *uesShift) apply(met fmom.PxPyPzE, sumEtDiff float64) (fmom.PxPyPzE, float64) {
	if u.candidate != nil {
		sumEtDiff += u.candidate.Pt - met.Pt()
		pt, phi := u.candidate.Pt, u.candidate.Phi
		return event.WithTransverse(met, pt*math.Cos(phi), pt*math.Sin(phi)), sumEtDiff
	}
	sumEtDiff += u.shifted.Pt() - u.center.Pt()
	return event.WithTransverse(met,
		met.Px()+u.shifted.Px-u.center.Px,
		met.Py()+u.shifted.Py-u.center.Py), sumEtDiff
}

func (m *Modifier) uesInputs(ev *event.Event, met *event.MET) (*uesShift, error) {
	if !m.cfg.Systematic.IsUES() {
		return nil, nil
	}
	up := m.cfg.Systematic == UESUp
	if m.cfg.Era == jer.Run1 {
		label := CandidateUESDown
		if up {
			label = CandidateUESUp
		}
		c, err := ev.Candidate(label)
		if err != nil {
			return nil, failure.Fatal("jetmet", err)
		}
		return &uesShift{candidate: c}, nil
	}

	label := ShiftedUESDown
	if up {
		label = ShiftedUESUp
	}
	shifted, err := met.ShiftedMET(label)
	if err != nil {
		return nil, failure.Fatal("jetmet", err)
	}
	center, err := met.ShiftedMET(ShiftedNoShift)
	if err != nil {
		return nil, failure.Fatal("jetmet", err)
	}
	return &uesShift{shifted: shifted, center: center}, nil
}
