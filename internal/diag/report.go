package diag

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
)

// reportBins caps the number of bars per chart; finer histograms are merged
// into adjacent groups. reportCells does the same per axis of a heat map.
const (
	reportBins  = 100
	reportCells = 50
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteReport renders an HTML page with one bar chart per non-empty 1D
// histogram, a heat map per filled 2D histogram, the width of each filled
// resolution-measurement bin and a chart of the numeric guard counts per
// stage.
func (s *Set) WriteReport(w io.Writer, title string) error {
	page := components.NewPage()
	page.PageTitle = title

	guards := s.Guards()
	stages := make([]string, 0, len(guards))
	for st := range guards {
		stages = append(stages, st)
	}
	sort.Strings(stages)
	gdata := make([]opts.BarData, len(stages))
	for i, st := range stages {
		gdata[i] = opts.BarData{Value: guards[st]}
	}
	gbar := charts.NewBar()
	gbar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Numeric guards", Subtitle: "NaN or non-finite values replaced, per stage"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	gbar.SetXAxis(stages).AddSeries("guards", gdata)
	page.AddCharts(gbar)

	for _, name := range s.Names() {
		h := s.H1D(name)
		if h.Entries() == 0 {
			continue
		}
		x, y := rebin(h.Binning.Bins, reportBins)
		data := make([]opts.BarData, len(y))
		for i, v := range y {
			data[i] = opts.BarData{Value: v}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    name,
				Subtitle: fmt.Sprintf("entries=%d mean=%.4g std=%.4g integral=%.4g", h.Entries(), h.XMean(), h.XStdDev(), floats.Sum(y)),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(x).AddSeries(name, data)
		page.AddCharts(bar)
	}

	for _, name := range s.Names2D() {
		h := s.H2D(name)
		if !filled2D(h) {
			continue
		}
		x, y, data, peak := rebin2D(h, reportCells)
		page.AddCharts(heatMap(name,
			fmt.Sprintf("entries=%d x mean=%.4g y mean=%.4g", h.Entries(), h.XMean(), h.YMean()),
			x, y, data, peak))
	}

	if chart := s.resolutionChart(); chart != nil {
		page.AddCharts(chart)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// rebin merges adjacent bins so that at most n remain and returns the
// labels (bin centre of each group) and summed weights.
func rebin(bins []hbook.Bin1D, n int) ([]string, []float64) {
	group := (len(bins) + n - 1) / n
	if group < 1 {
		group = 1
	}
	var labels []string
	var sums []float64
	for i := 0; i < len(bins); i += group {
		end := min(i+group, len(bins))
		sum := 0.0
		for j := i; j < end; j++ {
			sum += bins[j].SumW()
		}
		mid := (bins[i].XMid() + bins[end-1].XMid()) / 2
		labels = append(labels, fmt.Sprintf("%.3g", mid))
		sums = append(sums, sum)
	}
	return labels, sums
}

// rebin2D merges adjacent cells of h so that at most n remain per axis and
// returns the axis labels, the cells as [x index, y index, weight] and the
// largest weight.
func rebin2D(h *hbook.H2D, n int) ([]string, []string, []opts.HeatMapData, float64) {
	nx, ny := h.Binning.Nx, h.Binning.Ny
	gx, gy := max((nx+n-1)/n, 1), max((ny+n-1)/n, 1)
	cx, cy := (nx+gx-1)/gx, (ny+gy-1)/gy

	sums := make([]float64, cx*cy)
	bins := h.Binning.Bins
	for i := range bins {
		ix, iy := i%nx, i/nx
		sums[(iy/gy)*cx+ix/gx] += bins[i].SumW()
	}

	xlabels := make([]string, cx)
	for i := range xlabels {
		lo := &bins[i*gx]
		hi := &bins[min((i+1)*gx, nx)-1]
		xlabels[i] = fmt.Sprintf("%.3g", (lo.XMid()+hi.XMid())/2)
	}
	ylabels := make([]string, cy)
	for j := range ylabels {
		lo := &bins[j*gy*nx]
		hi := &bins[(min((j+1)*gy, ny)-1)*nx]
		ylabels[j] = fmt.Sprintf("%.3g", (lo.YMid()+hi.YMid())/2)
	}

	var data []opts.HeatMapData
	peak := 0.0
	for k, v := range sums {
		if v == 0 {
			continue
		}
		peak = math.Max(peak, v)
		data = append(data, opts.HeatMapData{Value: [3]interface{}{k % cx, k / cx, v}})
	}
	return xlabels, ylabels, data, peak
}

// resolutionChart maps the reco/truth pt ratio width of every filled
// resolution-measurement bin, or returns nil when nothing was measured.
func (s *Set) resolutionChart() *charts.HeatMap {
	if s == nil || s.res == nil {
		return nil
	}
	pts := ResolutionPtLabels()
	var data []opts.HeatMapData
	peak := 0.0
	for i := range ResolutionEtaLabels {
		for j := range pts {
			h := s.Resolution(i, j)
			if h.Entries() < 2 {
				continue
			}
			w := h.XStdDev()
			if math.IsNaN(w) {
				continue
			}
			peak = math.Max(peak, w)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, w}})
		}
	}
	if len(data) == 0 {
		return nil
	}
	return heatMap("Resolution measurement", "std dev of reco pt / truth pt per |eta| and truth pt bin",
		pts, ResolutionEtaLabels, data, peak)
}

func heatMap(title, subtitle string, x, y []string, data []opts.HeatMapData, peak float64) *charts.HeatMap {
	if peak == 0 {
		peak = 1
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: x}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: y}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(x).AddSeries(title, data)
	return hm
}
