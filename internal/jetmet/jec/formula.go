package jec

import (
	"fmt"
	"math"
	"strings"
)

// formulaKind is the closed set of correction parameterisations. Parameter
// files name the formula as an expression; only the expressions below are
// accepted.
type formulaKind int

const (
	// formulaOffset is the L1FastJet pileup offset,
	// max(0.0001,1-y*([0]+([1]*z)*(1+[2]*log(x)))/x) with x=pt, y=area, z=rho
	// when the parameter variables are declared as JetPt JetA Rho.
	formulaOffset formulaKind = iota + 1
	// formulaRelative is the standard L2Relative log-gaussian form with nine
	// parameters.
	formulaRelative
	// formulaConstant is [0].
	formulaConstant
	// formulaUnity is 1, used by L3Absolute files that carry no correction.
	formulaUnity
	// formulaPolyLog10 is a polynomial in log10(x) with as many terms as
	// parameters, used by residual corrections.
	formulaPolyLog10
	// formulaPow is max(0.0001,pow(x,[0])).
	formulaPow
)

var knownFormulas = map[string]formulaKind{
	"max(0.0001,1-y*([0]+([1]*z)*(1+[2]*log(x)))/x)": formulaOffset,
	"offset": formulaOffset,
	"[0]+([1]/(pow(log10(x),2)+[2]))+([3]*exp(-([4]*((log10(x)-[5])*(log10(x)-[5])))))+([6]*exp(-([7]*((log10(x)-[8])*(log10(x)-[8])))))": formulaRelative,
	"relative":                             formulaRelative,
	"[0]":                                  formulaConstant,
	"constant":                             formulaConstant,
	"1":                                    formulaUnity,
	"unity":                                formulaUnity,
	"poly-log10":                           formulaPolyLog10,
	"[0]+[1]*log10(x)":                     formulaPolyLog10,
	"[0]+[1]*log10(x)+[2]*pow(log10(x),2)": formulaPolyLog10,
	"[0]+[1]*log10(x)+[2]*pow(log10(x),2)+[3]*pow(log10(x),3)": formulaPolyLog10,
	"max(0.0001,pow(x,[0]))":                                   formulaPow,
	"pow":                                                      formulaPow,
}

// minParams is the number of parameters each formula reads.
var minParams = map[formulaKind]int{
	formulaOffset:    3,
	formulaRelative:  9,
	formulaConstant:  1,
	formulaUnity:     0,
	formulaPolyLog10: 1,
	formulaPow:       1,
}

func parseFormula(expr string) (formulaKind, error) {
	key := strings.Join(strings.Fields(expr), "")
	if k, ok := knownFormulas[key]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unsupported correction formula %q", expr)
}

// eval computes the formula at (x, y, z) with parameters p.
func (k formulaKind) eval(p []float64, x, y, z float64) float64 {
	switch k {
	case formulaOffset:
		return math.Max(0.0001, 1-y*(p[0]+(p[1]*z)*(1+p[2]*math.Log(x)))/x)
	case formulaRelative:
		lx := math.Log10(x)
		return p[0] + p[1]/(lx*lx+p[2]) +
			p[3]*math.Exp(-p[4]*(lx-p[5])*(lx-p[5])) +
			p[6]*math.Exp(-p[7]*(lx-p[8])*(lx-p[8]))
	case formulaConstant:
		return p[0]
	case formulaUnity:
		return 1
	case formulaPolyLog10:
		lx := math.Log10(x)
		sum, term := 0.0, 1.0
		for _, c := range p {
			sum += c * term
			term *= lx
		}
		return sum
	case formulaPow:
		return math.Max(0.0001, math.Pow(x, p[0]))
	default:
		return math.NaN()
	}
}
