package jetmet

import (
	"errors"

	"github.com/banshee-data/jetmet/internal/diag"
	"github.com/banshee-data/jetmet/internal/failure"
	"github.com/banshee-data/jetmet/internal/jetmet/jec"
	"github.com/banshee-data/jetmet/internal/jetmet/jer"
	"github.com/banshee-data/jetmet/internal/jetmet/jes"
	"github.com/banshee-data/jetmet/internal/jetmet/restable"
)

// Files lists the external parameter files.
type Files struct {
	// JECData holds L1FastJet, L2Relative, L3Absolute and L2L3Residual.
	JECData []string
	// JECMC holds L1FastJet, L2Relative and L3Absolute.
	JECMC          []string
	JESUncertainty string
	Resolution     string
	// ResolutionRhoBins is the number of rho bins per eta row of the
	// resolution file.
	ResolutionRhoBins int
}

// Engines are the read-only engines built from the parameter files. They
// are shared between workers; each worker gets its own Modifier.
type Engines struct {
	Config      Config
	Corrector   *jec.Factorized
	Uncertainty *jec.Uncertainty
	Resolution  *restable.Table
	Diag        *diag.Set
	// Warnings collects degraded-load errors that did not stop setup.
	Warnings []error
}

// Setup loads every file the configuration needs and logs a summary. Wrong
// calibration-file counts and unreadable calibration or uncertainty files
// are FatalConfig errors. An unreadable resolution file only disables
// smearing of unmatched jets.
func Setup(cfg Config, files Files, d *diag.Set) (*Engines, error) {
	cfg = cfg.WithDefaults()
	e := &Engines{Config: cfg, Diag: d}

	diagf("jet/MET modifier setup: data=%t corrections=[%s] systematic=%s nSigma=%g era=%s seed=%d",
		cfg.IsData, cfg.Corrections, cfg.Systematic, cfg.NSigma, cfg.Era, cfg.Seed)

	if cfg.Recalibrates() {
		paths := files.JECMC
		if cfg.IsData {
			paths = files.JECData
		}
		c, err := jec.LoadFactorized(paths, cfg.IsData)
		if err != nil {
			return nil, err
		}
		e.Corrector = c
		diagf("reapplying JEC %s", c)
	}

	if files.JESUncertainty != "" {
		u, err := jec.LoadUncertainty(files.JESUncertainty)
		if err != nil {
			return nil, failure.Fatal("jetmet", err)
		}
		e.Uncertainty = u
	} else if cfg.Systematic.IsJES() {
		return nil, failure.Fatal("jetmet", errors.New("JES systematic requested without an uncertainty file"))
	}

	if _, smear := cfg.jerVariation(); smear {
		nRho := files.ResolutionRhoBins
		if nRho == 0 {
			nRho = restable.DefaultRhoBins
		}
		t := restable.Placeholder()
		if files.Resolution != "" {
			var err error
			t, err = restable.Load(files.Resolution, nRho)
			if err != nil {
				if !failure.IsDegraded(err) {
					return nil, err
				}
				opsf("resolution table unavailable, unmatched jets will not be smeared: %v", err)
				e.Warnings = append(e.Warnings, err)
			}
		}
		e.Resolution = t
		diagf("smearing MC jets: gaussian=%t resolution bins=%d (%d eta x %d rho)",
			cfg.GaussianSmearing, t.Len(), t.EtaBins(), t.RhoBins())
	}
	return e, nil
}

// NewModifier returns a Modifier for one worker. Worker i draws from a
// random stream seeded Seed+i, so worker 0 reproduces a single-stream run.
func (e *Engines) NewModifier(worker int) (*Modifier, error) {
	cfg := e.Config
	var corrector jec.Corrector
	if e.Corrector != nil {
		corrector = e.Corrector
	}
	var smearer *jer.Smearer
	if e.Resolution != nil {
		smearer = jer.NewSmearer(e.Resolution, jer.Options{
			Era:      cfg.Era,
			NSigma:   cfg.NSigma,
			Gaussian: cfg.GaussianSmearing,
			Seed:     cfg.Seed + uint64(worker),
			Diag:     e.Diag,
		})
	}
	var shifter *jes.Shifter
	if e.Uncertainty != nil {
		shifter = jes.NewShifter(e.Uncertainty, e.Diag)
	}
	return NewModifier(cfg, corrector, smearer, shifter, e.Diag)
}
