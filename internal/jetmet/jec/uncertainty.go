package jec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Uncertainty evaluates the one-sided jet energy scale uncertainty as a
// function of pt and eta. Files share the braced definition line of the
// correction files, with level "Uncertainty", and carry rows of
//
//	etaMin etaMax nValues pt1 up1 down1 pt2 up2 down2 ...
type Uncertainty struct {
	bins []uncertaintyBin
}

type uncertaintyBin struct {
	etaMin, etaMax float64
	pt, up, down   []float64
}

// LoadUncertainty reads the uncertainty file at path.
func LoadUncertainty(path string) (*Uncertainty, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open uncertainty file: %w", err)
	}
	defer f.Close()

	u, err := ParseUncertainty(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// ParseUncertainty reads an uncertainty table from r.
func ParseUncertainty(r io.Reader) (*Uncertainty, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	seenDef := false
	u := &Uncertainty{}
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !seenDef {
			def, err := parseDefinitions(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if def.Level != "Uncertainty" {
				return nil, fmt.Errorf("line %d: expected Uncertainty level, got %q", line, def.Level)
			}
			seenDef = true
			continue
		}
		b, err := parseUncertaintyRow(strings.Fields(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		u.bins = append(u.bins, b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !seenDef {
		return nil, errors.New("missing definition line")
	}
	if len(u.bins) == 0 {
		return nil, errors.New("no uncertainty rows found")
	}
	return u, nil
}

func parseUncertaintyRow(fields []string) (uncertaintyBin, error) {
	if len(fields) < 3 {
		return uncertaintyBin{}, fmt.Errorf("expected at least 3 columns, got %d", len(fields))
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return uncertaintyBin{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}
	n := int(vals[2])
	if n != len(vals)-3 || n == 0 || n%3 != 0 {
		return uncertaintyBin{}, fmt.Errorf("row declares %d values, found %d in (pt, up, down) triplets", n, len(vals)-3)
	}

	b := uncertaintyBin{etaMin: vals[0], etaMax: vals[1]}
	for i := 3; i < len(vals); i += 3 {
		b.pt = append(b.pt, vals[i])
		b.up = append(b.up, vals[i+1])
		b.down = append(b.down, vals[i+2])
	}
	if !sort.Float64sAreSorted(b.pt) {
		return uncertaintyBin{}, errors.New("pt points must be ascending")
	}
	return b, nil
}

// Uncertainty returns the fractional uncertainty at (pt, eta) in the
// requested direction, linearly interpolated in pt and held constant beyond
// the first and last points. An eta outside every bin yields NaN.
func (u *Uncertainty) Uncertainty(pt, eta float64, up bool) float64 {
	for i := range u.bins {
		b := &u.bins[i]
		if eta < b.etaMin || eta >= b.etaMax {
			continue
		}
		vals := b.down
		if up {
			vals = b.up
		}
		return interpolate(b.pt, vals, pt)
	}
	tracef("uncertainty: no eta bin for eta=%.3f", eta)
	return math.NaN()
}

func interpolate(xs, ys []float64, x float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	i := sort.SearchFloat64s(xs, x)
	// xs[i-1] < x <= xs[i]
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
