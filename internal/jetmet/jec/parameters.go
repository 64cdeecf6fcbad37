// Package jec evaluates jet energy corrections and jet energy scale
// uncertainties from the text parameter files distributed with each
// calibration release.
//
// A correction level file starts with a braced definition line
//
//	{nBinVar binVar... nParVar parVar... formula Correction Level}
//
// followed by one record per bin:
//
//	binMin binMax ... nTokens parMin parMax ... p0 p1 ...
//
// where nTokens counts the parameter-variable ranges plus the parameters.
// Levels are combined by Factorized in file order.
package jec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Supported variable names.
const (
	VarJetEta = "JetEta"
	VarJetPt  = "JetPt"
	VarJetA   = "JetA"
	VarRho    = "Rho"
)

// inputs are the jet quantities a level may read.
type inputs struct {
	eta, pt, area, rho float64
}

func (in inputs) value(name string) float64 {
	switch name {
	case VarJetEta:
		return in.eta
	case VarJetPt:
		return in.pt
	case VarJetA:
		return in.area
	case VarRho:
		return in.rho
	}
	return 0
}

func validVar(name string) bool {
	switch name {
	case VarJetEta, VarJetPt, VarJetA, VarRho:
		return true
	}
	return false
}

// Definitions is the parsed header of a parameter file.
type Definitions struct {
	BinVars []string
	ParVars []string
	Formula string
	Level   string

	kind formulaKind
}

// Record is one bin of a parameter file.
type Record struct {
	BinMin []float64
	BinMax []float64
	VarMin []float64
	VarMax []float64
	Params []float64
}

func (r *Record) contains(in inputs, binVars []string) bool {
	for i, name := range binVars {
		v := in.value(name)
		if v < r.BinMin[i] || v >= r.BinMax[i] {
			return false
		}
	}
	return true
}

// Parameters is a single correction level.
type Parameters struct {
	Def     Definitions
	Records []Record
}

// LoadParameters reads the parameter file at path.
func LoadParameters(path string) (*Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	p, err := ParseParameters(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseParameters reads a correction level from r.
func ParseParameters(r io.Reader) (*Parameters, error) {
	sc := bufio.NewScanner(r)
	line := 0
	var p *Parameters
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if p == nil {
			def, err := parseDefinitions(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			p = &Parameters{Def: def}
			continue
		}
		rec, err := parseRecord(strings.Fields(text), len(p.Def.BinVars), len(p.Def.ParVars))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec.Params) < minParams[p.Def.kind] {
			return nil, fmt.Errorf("line %d: formula needs %d parameters, got %d", line, minParams[p.Def.kind], len(rec.Params))
		}
		p.Records = append(p.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("missing definition line")
	}
	if len(p.Records) == 0 {
		return nil, fmt.Errorf("level %s has no records", p.Def.Level)
	}
	return p, nil
}

func parseDefinitions(text string) (Definitions, error) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return Definitions{}, fmt.Errorf("definition line must be enclosed in braces: %q", text)
	}
	tok := strings.Fields(strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}"))
	next := func() (string, error) {
		if len(tok) == 0 {
			return "", errors.New("truncated definition line")
		}
		t := tok[0]
		tok = tok[1:]
		return t, nil
	}
	readVars := func() ([]string, error) {
		s, err := next()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid variable count %q", s)
		}
		vars := make([]string, 0, n)
		for i := 0; i < n; i++ {
			name, err := next()
			if err != nil {
				return nil, err
			}
			if !validVar(name) {
				return nil, fmt.Errorf("unsupported variable %q", name)
			}
			vars = append(vars, name)
		}
		return vars, nil
	}

	var def Definitions
	var err error
	if def.BinVars, err = readVars(); err != nil {
		return def, err
	}
	if def.ParVars, err = readVars(); err != nil {
		return def, err
	}
	if def.Formula, err = next(); err != nil {
		return def, err
	}
	if _, err = next(); err != nil { // "Correction"
		return def, err
	}
	if def.Level, err = next(); err != nil {
		return def, err
	}
	if def.Level != "Uncertainty" {
		if def.kind, err = parseFormula(def.Formula); err != nil {
			return def, err
		}
	}
	return def, nil
}

func parseRecord(fields []string, nBin, nPar int) (Record, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}

	head := 2*nBin + 1
	if len(vals) < head {
		return Record{}, fmt.Errorf("expected at least %d columns, got %d", head, len(vals))
	}
	nTokens := int(vals[2*nBin])
	if len(vals)-head != nTokens {
		return Record{}, fmt.Errorf("record declares %d values, found %d", nTokens, len(vals)-head)
	}
	if nTokens < 2*nPar {
		return Record{}, fmt.Errorf("record declares %d values, need at least %d variable ranges", nTokens, 2*nPar)
	}

	rec := Record{}
	for i := 0; i < nBin; i++ {
		rec.BinMin = append(rec.BinMin, vals[2*i])
		rec.BinMax = append(rec.BinMax, vals[2*i+1])
	}
	rest := vals[head:]
	for i := 0; i < nPar; i++ {
		rec.VarMin = append(rec.VarMin, rest[2*i])
		rec.VarMax = append(rec.VarMax, rest[2*i+1])
	}
	rec.Params = append([]float64(nil), rest[2*nPar:]...)
	return rec, nil
}

// find returns the record whose bin contains in, or nil.
func (p *Parameters) find(in inputs) *Record {
	for i := range p.Records {
		if p.Records[i].contains(in, p.Def.BinVars) {
			return &p.Records[i]
		}
	}
	return nil
}

// correction evaluates this level. Parameter variables are clamped into the
// record's validity range; a jet outside every bin gets 1.
func (p *Parameters) correction(in inputs) float64 {
	rec := p.find(in)
	if rec == nil {
		tracef("%s: no bin for eta=%.3f pt=%.2f, using 1", p.Def.Level, in.eta, in.pt)
		return 1
	}
	var xyz [3]float64
	for i, name := range p.Def.ParVars {
		if i >= len(xyz) {
			break
		}
		v := in.value(name)
		if v < rec.VarMin[i] {
			v = rec.VarMin[i]
		}
		if v > rec.VarMax[i] {
			v = rec.VarMax[i]
		}
		xyz[i] = v
	}
	return p.Def.kind.eval(rec.Params, xyz[0], xyz[1], xyz[2])
}
