package jetmet

import (
	"fmt"
	"strings"
)

// Systematic is the one-sided variation applied on top of the corrections.
type Systematic int

const (
	SystNone Systematic = iota
	JESUp
	JESDown
	JERBetter
	JERWorse
	UESUp
	UESDown
)

var systematicNames = map[Systematic]string{
	SystNone:  "none",
	JESUp:     "jes_up",
	JESDown:   "jes_down",
	JERBetter: "jer_better",
	JERWorse:  "jer_worse",
	UESUp:     "ues_up",
	UESDown:   "ues_down",
}

func (s Systematic) String() string {
	if n, ok := systematicNames[s]; ok {
		return n
	}
	return fmt.Sprintf("systematic(%d)", int(s))
}

// ParseSystematic maps a name such as "jes_up" onto a Systematic. The empty
// string means none.
func ParseSystematic(name string) (Systematic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SystNone, nil
	}
	for s, n := range systematicNames {
		if n == name {
			return s, nil
		}
	}
	return SystNone, fmt.Errorf("unknown systematic %q", name)
}

// IsJES reports whether s shifts the jet energy scale.
func (s Systematic) IsJES() bool { return s == JESUp || s == JESDown }

// IsUES reports whether s shifts the unclustered energy.
func (s Systematic) IsUES() bool { return s == UESUp || s == UESDown }

// Up reports whether s is an upward (or worse) variation.
func (s Systematic) Up() bool { return s == JESUp || s == UESUp || s == JERWorse }

// Correction is one source of correction to apply.
type Correction int

const (
	JECData Correction = iota + 1
	JECMC
	SmearMC
	Type1MET
)

var correctionNames = map[Correction]string{
	JECData:  "jec_data",
	JECMC:    "jec_mc",
	SmearMC:  "smear_mc",
	Type1MET: "type1_met",
}

func (c Correction) String() string {
	if n, ok := correctionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("correction(%d)", int(c))
}

// ParseCorrection maps a name such as "jec_data" onto a Correction.
func ParseCorrection(name string) (Correction, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range correctionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown correction %q", name)
}

// Corrections is an ordered set of correction sources.
type Corrections []Correction

// ParseCorrections parses each name in order.
func ParseCorrections(names []string) (Corrections, error) {
	out := make(Corrections, 0, len(names))
	for _, n := range names {
		c, err := ParseCorrection(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Has reports whether c is in the set.
func (cs Corrections) Has(c Correction) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

func (cs Corrections) String() string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

// Stage names the successive states of a jet during processing.
type Stage int

const (
	StageBefore Stage = iota
	StageRaw
	StageCalibrated
	StageSmeared
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StageBefore:
		return "before"
	case StageRaw:
		return "raw"
	case StageCalibrated:
		return "calibrated"
	case StageSmeared:
		return "smeared"
	case StageFinal:
		return "final"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}
