package restable

import (
	"fmt"
	"math"
	"strings"
)

// Formula identifies one of the analytic resolution parameterisations the
// loader understands. Resolution files name their formula as an expression
// string; the loader maps that string onto this closed set.
type Formula int

const (
	// FormulaNSC is sqrt([0]*abs([0])/(x*x)+[1]*[1]*pow(x,[3])+[2]*[2]),
	// the noise/stochastic/constant form with a free stochastic exponent.
	FormulaNSC Formula = iota + 1
	// FormulaNSCQuadrature is sqrt([0]*[0]/(x*x)+[1]*[1]/x+[2]*[2]).
	FormulaNSCQuadrature
)

var formulaExpressions = map[string]Formula{
	"sqrt([0]*abs([0])/(x*x)+[1]*[1]*pow(x,[3])+[2]*[2])": FormulaNSC,
	"nsc":                                   FormulaNSC,
	"sqrt([0]*[0]/(x*x)+[1]*[1]/x+[2]*[2])": FormulaNSCQuadrature,
	"nsc-quadrature":                        FormulaNSCQuadrature,
}

// ParseFormula maps an expression string or short identifier onto a Formula.
// Whitespace inside the expression is ignored.
func ParseFormula(expr string) (Formula, error) {
	key := strings.Join(strings.Fields(expr), "")
	if f, ok := formulaExpressions[key]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("unsupported resolution formula %q", expr)
}

func (f Formula) String() string {
	switch f {
	case FormulaNSC:
		return "nsc"
	case FormulaNSCQuadrature:
		return "nsc-quadrature"
	default:
		return fmt.Sprintf("formula(%d)", int(f))
	}
}

// FitFunc is one relative-resolution function valid over [PtMin, PtMax].
type FitFunc struct {
	Formula Formula
	PtMin   float64
	PtMax   float64
	Params  [4]float64
}

// Range returns the pt interval the function was fitted on.
func (f *FitFunc) Range() (float64, float64) { return f.PtMin, f.PtMax }

// Eval returns the relative resolution sigma(pt)/pt at x. No clipping to
// the valid range is done here.
func (f *FitFunc) Eval(x float64) float64 {
	p := f.Params
	switch f.Formula {
	case FormulaNSC:
		return math.Sqrt(p[0]*math.Abs(p[0])/(x*x) + p[1]*p[1]*math.Pow(x, p[3]) + p[2]*p[2])
	case FormulaNSCQuadrature:
		return math.Sqrt(p[0]*p[0]/(x*x) + p[1]*p[1]/x + p[2]*p[2])
	default:
		return math.NaN()
	}
}

// Clip restricts x to the function's valid pt range.
func (f *FitFunc) Clip(x float64) float64 {
	if x < f.PtMin {
		return f.PtMin
	}
	if x > f.PtMax {
		return f.PtMax
	}
	return x
}
