// Package event holds the per-event objects the jet/MET engine reads and
// writes: reconstructed jets, truth jets, the MET object and the standalone
// candidates that carry alternative MET hypotheses.
//
// Collections are keyed by label so the engine can be pointed at any jet or
// MET collection produced upstream. Four-momenta are go-hep fmom vectors in
// (px, py, pz, E) order and travel as a four-element "p4" array in JSON.
package event

import (
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"
)

// ErrMissingCollection is returned when a labelled collection is absent.
var ErrMissingCollection = errors.New("missing collection")

// Jet is a reconstructed, calibrated jet.
type Jet struct {
	ID                int          `json:"id"`
	P4                fmom.PxPyPzE `json:"p4"`
	UncorrectedEnergy float64      `json:"uncorrected_energy"`
	Area              float64      `json:"area"`
}

// CorrectionFactor returns the calibration currently applied to the jet,
// E / uncorrected_energy. The result is not guarded; callers decide how to
// treat a zero uncorrected energy.
func (j *Jet) CorrectionFactor() float64 {
	return j.P4.E() / j.UncorrectedEnergy
}

// Raw returns the uncalibrated four-momentum, old / (old.E / uncorrected_energy).
func (j *Jet) Raw() fmom.PxPyPzE {
	return Scale(j.P4, 1/j.CorrectionFactor())
}

// GenJet is a truth jet used only for matching.
type GenJet struct {
	ID int          `json:"id"`
	P4 fmom.PxPyPzE `json:"p4"`
}

// BasicMET is a shifted-MET alternative stored inside a MET object.
type BasicMET struct {
	Px    float64 `json:"px"`
	Py    float64 `json:"py"`
	SumEt float64 `json:"sumet"`
}

// Pt returns the transverse magnitude of the shifted MET.
func (b BasicMET) Pt() float64 { return math.Hypot(b.Px, b.Py) }

// MET is the event's missing transverse energy.
type MET struct {
	P4           fmom.PxPyPzE        `json:"p4"`
	SumEt        float64             `json:"sum_et"`
	Significance float64             `json:"et_sig"`
	Shifted      map[string]BasicMET `json:"shifted,omitempty"`
}

// ShiftedMET looks up a named shifted-MET alternative.
func (m *MET) ShiftedMET(label string) (BasicMET, error) {
	s, ok := m.Shifted[label]
	if !ok {
		return BasicMET{}, fmt.Errorf("shifted met %q: %w", label, ErrMissingCollection)
	}
	return s, nil
}

// Candidate is a standalone object given by (pt, eta, phi, E).
type Candidate struct {
	Pt  float64 `json:"pt"`
	Eta float64 `json:"eta"`
	Phi float64 `json:"phi"`
	E   float64 `json:"e"`
}

// Event is one collision event as seen by the engine.
type Event struct {
	Run        uint32                `json:"run"`
	Lumi       uint32                `json:"lumi"`
	Number     uint64                `json:"event"`
	JetRho     float64               `json:"jet_rho"`
	Jets       map[string][]*Jet     `json:"jets"`
	GenJets    map[string][]*GenJet  `json:"gen_jets,omitempty"`
	METs       map[string][]*MET     `json:"mets"`
	Candidates map[string]*Candidate `json:"candidates,omitempty"`
}

// JetCollection returns the mutable jet collection named label.
func (e *Event) JetCollection(label string) ([]*Jet, error) {
	jets, ok := e.Jets[label]
	if !ok {
		return nil, fmt.Errorf("jets %q: %w", label, ErrMissingCollection)
	}
	return jets, nil
}

// GenJetCollection returns the truth jet collection named label.
func (e *Event) GenJetCollection(label string) ([]*GenJet, error) {
	jets, ok := e.GenJets[label]
	if !ok {
		return nil, fmt.Errorf("gen jets %q: %w", label, ErrMissingCollection)
	}
	return jets, nil
}

// FirstMET returns the first MET of the collection named label. A collection
// holding a single object is the common case.
func (e *Event) FirstMET(label string) (*MET, error) {
	mets := e.METs[label]
	if len(mets) == 0 || mets[0] == nil {
		return nil, fmt.Errorf("met %q: %w", label, ErrMissingCollection)
	}
	return mets[0], nil
}

// Candidate returns the standalone candidate named label.
func (e *Event) Candidate(label string) (*Candidate, error) {
	c, ok := e.Candidates[label]
	if !ok || c == nil {
		return nil, fmt.Errorf("candidate %q: %w", label, ErrMissingCollection)
	}
	return c, nil
}
