// Package restable loads simulated jet pt-resolution parameterisations from
// the flat text tables published alongside each jet calibration release.
//
// A table file starts with a 7-token header whose 6th token is the fit
// formula, followed by rows of
//
//	etaMin etaMax rhoMin rhoMax nPar ptMin ptMax p0 p1 p2 p3
//
// ordered eta-major with a fixed number of rho bins per eta bin. The loaded
// Table answers "which fit function covers this (|eta|, rho)" and is
// immutable after loading.
package restable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/jetmet/internal/failure"
)

const (
	// DefaultRhoBins is the number of rho bins per eta bin in the published tables.
	DefaultRhoBins = 5
	// PlaceholderSize is the slot count of the table used when no file could
	// be read: 5 rho bins times 26 eta bins.
	PlaceholderSize = 130
	// EtaSentinel closes the last eta bin.
	EtaSentinel = 4.7
	// RhoSentinel closes the last rho bin.
	RhoSentinel = 1000.0

	headerTokens = 7
	rowColumns   = 11
)

// Table maps (|eta|, rho) bins onto resolution fit functions.
type Table struct {
	// Expr is the formula expression exactly as written in the file header.
	Expr    string
	Formula Formula

	funcs    []*FitFunc
	etaEdges []float64
	rhoEdges []float64
}

// Placeholder returns the disabled table used when the resolution file is
// unavailable. It has PlaceholderSize empty slots and no bin edges.
func Placeholder() *Table {
	return &Table{funcs: make([]*FitFunc, PlaceholderSize)}
}

// Load reads the table at path. When the file cannot be opened or parsed it
// returns Placeholder() together with a Degraded error so callers can carry
// on with unmatched-jet smearing switched off.
func Load(path string, nRho int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Placeholder(), failure.Degrade("resolution table", fmt.Errorf("unable to open %s: %w", path, err))
	}
	defer f.Close()

	t, err := Parse(f, nRho)
	if err != nil {
		return Placeholder(), failure.Degrade("resolution table", fmt.Errorf("%s: %w", path, err))
	}
	return t, nil
}

// Parse reads a resolution table from r. nRho is the number of rho bins per
// eta bin; rows whose nPar is <= 1 are blank-line artifacts and skipped.
func Parse(r io.Reader, nRho int) (*Table, error) {
	if nRho <= 0 {
		return nil, fmt.Errorf("rho bins must be positive, got %d", nRho)
	}

	sc := bufio.NewScanner(r)
	var header []string
	line := 0
	for len(header) < headerTokens && sc.Scan() {
		line++
		header = append(header, strings.Fields(sc.Text())...)
	}
	if len(header) < headerTokens {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("header: expected 7 tokens")
	}

	formula, err := ParseFormula(header[5])
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	t := &Table{Expr: header[5], Formula: formula}

	counter := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		nPar, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: nPar: %w", line, err)
		}
		if nPar <= 1 {
			continue
		}
		if len(fields) < rowColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, rowColumns, len(fields))
		}

		var v [rowColumns]float64
		for i := 0; i < rowColumns; i++ {
			if i == 4 {
				continue
			}
			if v[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
		}

		t.funcs = append(t.funcs, &FitFunc{
			Formula: formula,
			PtMin:   v[5],
			PtMax:   v[6],
			Params:  [4]float64{v[7], v[8], v[9], v[10]},
		})
		if counter%nRho == 0 {
			t.etaEdges = append(t.etaEdges, v[0])
		}
		if counter < nRho {
			t.rhoEdges = append(t.rhoEdges, v[2])
		}
		counter++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(t.funcs) == 0 {
		return nil, errors.New("no resolution rows found")
	}
	if len(t.etaEdges)*len(t.rhoEdges) != len(t.funcs) {
		return nil, fmt.Errorf("%d eta bins x %d rho bins != %d functions",
			len(t.etaEdges), len(t.rhoEdges), len(t.funcs))
	}

	t.etaEdges = append(t.etaEdges, EtaSentinel)
	t.rhoEdges = append(t.rhoEdges, RhoSentinel)
	return t, nil
}

// Enabled reports whether the table carries bin edges and can be queried.
func (t *Table) Enabled() bool {
	return t != nil && len(t.etaEdges) > 1 && len(t.rhoEdges) > 1
}

// Len is the number of function slots.
func (t *Table) Len() int { return len(t.funcs) }

// EtaBins is the number of eta bins.
func (t *Table) EtaBins() int { return max(len(t.etaEdges)-1, 0) }

// RhoBins is the number of rho bins.
func (t *Table) RhoBins() int { return max(len(t.rhoEdges)-1, 0) }

// EtaEdges returns a copy of the eta bin edges, sentinel included.
func (t *Table) EtaEdges() []float64 { return append([]float64(nil), t.etaEdges...) }

// RhoEdges returns a copy of the rho bin edges, sentinel included.
func (t *Table) RhoEdges() []float64 { return append([]float64(nil), t.rhoEdges...) }

// Func returns the function in slot bin, or nil for an empty or unknown slot.
func (t *Table) Func(bin int) *FitFunc {
	if bin < 0 || bin >= len(t.funcs) {
		return nil
	}
	return t.funcs[bin]
}

// Bin returns the slot index for (absEta, rho): bin = nRho*etaBin + rhoBin.
// Each axis is scanned for the half-open [lo, hi) interval; a value matching
// no interval, including one at or past the sentinel, uses index 0.
// Querying a table without edges, or landing outside the function slots, is a
// FatalConfig error: it means the resolution file does not match the binning.
func (t *Table) Bin(absEta, rho float64) (int, error) {
	if !t.Enabled() {
		return 0, failure.Fatalf("resolution bin", "uninitialised arrays for finding MC resolution bin number")
	}
	etaBin := axisBin(t.etaEdges, absEta)
	rhoBin := axisBin(t.rhoEdges, rho)
	bin := t.RhoBins()*etaBin + rhoBin
	if bin >= len(t.funcs) {
		return 0, failure.Fatalf("resolution bin", "bin %d out of %d for eta=%g rho=%g: wrong binning implemented for MC resolution",
			bin, len(t.funcs), absEta, rho)
	}
	return bin, nil
}

func axisBin(edges []float64, v float64) int {
	n := len(edges) - 1
	for i := 0; i < n; i++ {
		if v >= edges[i] && v < edges[i+1] {
			return i
		}
	}
	return 0
}
