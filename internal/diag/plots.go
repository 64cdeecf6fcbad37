package diag

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
)

// SavePlots writes one PNG per non-empty 1D histogram into dir, a heat map
// per filled 2D histogram, the filled resolution-measurement histograms
// under dir/resolution, and an overlay of the MET pt before and after
// modification. It returns the written file paths.
func (s *Set) SavePlots(dir string) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}

	var written []string
	for _, name := range s.Names() {
		h := s.H1D(name)
		if h.Entries() == 0 || name == METPtBefore || name == METPtAfter {
			continue
		}
		p := plot.New()
		p.Title.Text = name
		p.Y.Label.Text = "entries"
		hh := hplot.NewH1D(h)
		hh.Infos.Style = hplot.HInfoSummary
		p.Add(hh)

		file := filepath.Join(dir, name+".png")
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", file, err)
		}
		written = append(written, file)
	}

	for _, name := range s.Names2D() {
		h := s.H2D(name)
		if !filled2D(h) {
			continue
		}
		file := filepath.Join(dir, name+".png")
		if err := saveHeatMap(file, name, h); err != nil {
			return written, err
		}
		written = append(written, file)
	}

	if res := s.ResolutionHistograms(); len(res) > 0 {
		rdir := filepath.Join(dir, "resolution")
		if err := os.MkdirAll(rdir, 0o755); err != nil {
			return written, fmt.Errorf("failed to create resolution plot dir: %w", err)
		}
		for _, h := range res {
			if h.Entries() == 0 {
				continue
			}
			p := plot.New()
			p.Title.Text = h.Name()
			p.X.Label.Text = "reco pt / truth pt"
			p.Y.Label.Text = "jets"
			hh := hplot.NewH1D(h)
			hh.Infos.Style = hplot.HInfoSummary
			p.Add(hh)

			file := filepath.Join(rdir, h.Name()+".png")
			if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
				return written, fmt.Errorf("failed to save %s: %w", file, err)
			}
			written = append(written, file)
		}
	}

	before, after := s.H1D(METPtBefore), s.H1D(METPtAfter)
	if before.Entries() > 0 {
		file := filepath.Join(dir, "met_comparison.png")
		if err := saveOverlay(file, "MET pt", before, after); err != nil {
			return written, err
		}
		written = append(written, file)
	}
	return written, nil
}

func saveOverlay(file, title string, before, after *hbook.H1D) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "pt (GeV)"
	p.Y.Label.Text = "events"

	hb := hplot.NewH1D(before)
	hb.LineStyle.Color = color.RGBA{B: 255, A: 255}
	ha := hplot.NewH1D(after)
	ha.LineStyle.Color = color.RGBA{R: 255, A: 255}
	ha.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(hb, ha)
	p.Legend.Add("before", hb)
	p.Legend.Add("after", ha)
	p.Legend.Top = true

	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}

func saveHeatMap(file, title string, h *hbook.H2D) error {
	p := plot.New()
	p.Title.Text = title
	hh := hplot.NewH2D(h, palette.Heat(12, 1))
	hh.HeatMap.Rasterized = true
	p.Add(hh)

	if err := p.Save(10*vg.Inch, 8*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}
