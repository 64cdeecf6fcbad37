package diag

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSetIsNoOp(t *testing.T) {
	var s *Set
	s.Fill(JESMETDiff, 1)
	s.Fill2(JESCorrFac, 1, 1)
	s.FillResolution(0.1, 30, 1)
	s.Guard(StageSmeared)

	assert.Empty(t, s.Guards())
	assert.Nil(t, s.H1D(JESMETDiff))
	assert.Nil(t, s.Names())
	paths, err := s.SavePlots(t.TempDir())
	assert.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFill(t *testing.T) {
	s := New(Options{})
	s.Fill(SmearPtDiff, 0.5)
	s.Fill(SmearPtDiff, math.NaN())
	s.Fill(SmearPtDiff, math.Inf(1))
	s.Fill("no-such-histogram", 1)
	s.Fill2(JESCorrFac, 100, 0.02)

	assert.EqualValues(t, 1, s.H1D(SmearPtDiff).Entries())
	assert.EqualValues(t, 1, s.H2D(JESCorrFac).Entries())
	assert.Contains(t, s.Names(), JESMETDiff)
	assert.Nil(t, s.Resolution(0, 0), "resolution histograms are not booked by default")
}

func TestGuardsConcurrent(t *testing.T) {
	s := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Guard(StageCalibrated)
				s.Fill(JESJetEtaDiff, 0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.Guards()[StageCalibrated])
	assert.EqualValues(t, 800, s.H1D(JESJetEtaDiff).Entries())
}

func TestResolutionBins(t *testing.T) {
	labels := ResolutionPtLabels()
	require.Len(t, labels, 40)
	assert.Equal(t, "0-2", labels[0])
	assert.Equal(t, "58-60", labels[29])
	assert.Equal(t, "60-80", labels[30])
	assert.Equal(t, "180-200", labels[36])
	assert.Equal(t, "200-250", labels[37])
	assert.Equal(t, "300-inf", labels[39])

	ptTests := []struct {
		pt   float64
		want int
	}{
		{0, 0}, {1.9, 0}, {2, 1}, {59.9, 29}, {60, 30}, {199, 36}, {200, 37}, {260, 38}, {1e4, 39}, {-1, -1}, {math.NaN(), -1},
	}
	for _, tt := range ptTests {
		assert.Equal(t, tt.want, ResolutionPtBin(tt.pt), "pt=%v", tt.pt)
	}

	etaTests := []struct {
		eta  float64
		want int
	}{
		{0, 0}, {0.5, 1}, {1.2, 2}, {2.29, 3}, {4.9, 4}, {5, -1},
	}
	for _, tt := range etaTests {
		assert.Equal(t, tt.want, ResolutionEtaBin(tt.eta), "eta=%v", tt.eta)
	}

	s := New(Options{ResolutionMeasurement: true})
	s.FillResolution(1.2, 45, 1.1)
	s.FillResolution(7, 45, 1.1)
	h := s.Resolution(2, 22)
	require.NotNil(t, h)
	assert.EqualValues(t, 1, h.Entries())
	assert.Equal(t, "recogenjetptratio_1p1-1p7_44-46", h.Annotation()["name"])
}

func TestWriteReport(t *testing.T) {
	s := New(Options{})
	s.Guard(StageMET)
	for i := 0; i < 50; i++ {
		s.Fill(SmearPtDiff, float64(i%10)/10)
	}

	var buf bytes.Buffer
	require.NoError(t, s.WriteReport(&buf, "jetmet diagnostics"))
	out := buf.String()
	assert.Contains(t, out, "Numeric guards")
	assert.Contains(t, out, SmearPtDiff)
	assert.NotContains(t, out, JESJetPhiDiff, "empty histograms are skipped")
}

func TestRebin(t *testing.T) {
	s := New(Options{})
	h := s.H1D(SmearPtDiff)
	h.Fill(0.001, 1)
	h.Fill(0.002, 1)

	x, y := rebin(h.Binning.Bins, reportBins)
	assert.Len(t, x, reportBins)
	assert.Len(t, y, reportBins)
	total := 0.0
	for _, v := range y {
		total += v
	}
	assert.Equal(t, 2.0, total)
}

func TestSavePlots(t *testing.T) {
	s := New(Options{})
	for i := 0; i < 20; i++ {
		s.Fill(SmearJetGenJetPtRatio, 1+float64(i)/100)
		s.Fill(METPtBefore, 40)
		s.Fill(METPtAfter, 42)
	}

	dir := filepath.Join(t.TempDir(), "plots")
	paths, err := s.SavePlots(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, SmearJetGenJetPtRatio+".png"),
		filepath.Join(dir, "met_comparison.png"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRebin2D(t *testing.T) {
	s := New(Options{})
	s.Fill2(JESCorrFac, 110, 0.02)
	s.Fill2(JESCorrFac, 110.5, 0.021)
	s.Fill2(JESCorrFac, 900, -0.29)
	s.Fill2(JESCorrFac, 5000, 0)

	x, y, data, peak := rebin2D(s.H2D(JESCorrFac), reportCells)
	assert.Len(t, x, reportCells)
	assert.Len(t, y, reportCells)
	assert.Len(t, data, 2)
	assert.Equal(t, 2.0, peak)
	assert.Equal(t, [3]interface{}{45, 0, 1.0}, data[0].Value)
	assert.Equal(t, [3]interface{}{5, 26, 2.0}, data[1].Value)
}

func TestNames2D(t *testing.T) {
	assert.Equal(t, []string{JESCorrFac, SmearJetGenJetPtRatioEta}, New(Options{}).Names2D())
	assert.Nil(t, New(Options{}).ResolutionHistograms())
	assert.Len(t, New(Options{ResolutionMeasurement: true}).ResolutionHistograms(), len(ResolutionEtaLabels)*40)
}

func TestSavePlots_HeatMapsAndResolution(t *testing.T) {
	s := New(Options{ResolutionMeasurement: true})
	for i := 0; i < 20; i++ {
		s.Fill2(SmearJetGenJetPtRatioEta, 1+float64(i)/50, 0.3)
		s.FillResolution(0.2, 45, 1+float64(i)/100)
	}
	// Entries outside the axes only.
	s.Fill2(JESCorrFac, 5000, 0)

	dir := filepath.Join(t.TempDir(), "plots")
	paths, err := s.SavePlots(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, SmearJetGenJetPtRatioEta+".png"),
		filepath.Join(dir, "resolution", "recogenjetptratio_0p0-0p5_44-46.png"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestWriteReport_HeatMaps(t *testing.T) {
	s := New(Options{ResolutionMeasurement: true})
	s.Fill2(JESCorrFac, 120, 0.03)
	s.FillResolution(1.2, 45, 1.05)
	s.FillResolution(1.2, 45, 0.95)

	var buf bytes.Buffer
	require.NoError(t, s.WriteReport(&buf, "jetmet diagnostics"))
	out := buf.String()
	assert.Contains(t, out, JESCorrFac)
	assert.Contains(t, out, "Resolution measurement")
	assert.Contains(t, out, "heatmap")
	assert.NotContains(t, out, SmearJetGenJetPtRatioEta, "unfilled 2D histograms are skipped")
}
