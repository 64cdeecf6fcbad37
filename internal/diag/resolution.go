package diag

import "strconv"

// ResolutionEtaLabels name the |eta| bins of the resolution measurement.
var ResolutionEtaLabels = []string{"0p0-0p5", "0p5-1p1", "1p1-1p7", "1p7-2p3", "2p3-5p0"}

var resolutionEtaEdges = []float64{0, 0.5, 1.1, 1.7, 2.3, 5.0}

// resolutionPtEdges: 2 GeV steps to 60, 20 GeV steps to 200, then 250 and
// 300; the last bin is open ended.
var resolutionPtEdges = func() []float64 {
	var e []float64
	for pt := 0; pt <= 60; pt += 2 {
		e = append(e, float64(pt))
	}
	for pt := 80; pt <= 200; pt += 20 {
		e = append(e, float64(pt))
	}
	return append(e, 250, 300)
}()

// ResolutionPtLabels returns the 40 truth pt bin labels.
func ResolutionPtLabels() []string {
	labels := make([]string, 0, len(resolutionPtEdges))
	for i := 0; i+1 < len(resolutionPtEdges); i++ {
		labels = append(labels, ftoa(resolutionPtEdges[i])+"-"+ftoa(resolutionPtEdges[i+1]))
	}
	return append(labels, ftoa(resolutionPtEdges[len(resolutionPtEdges)-1])+"-inf")
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ResolutionEtaBin returns the |eta| bin, or -1 outside [0, 5).
func ResolutionEtaBin(absEta float64) int {
	for i := 0; i+1 < len(resolutionEtaEdges); i++ {
		if absEta >= resolutionEtaEdges[i] && absEta < resolutionEtaEdges[i+1] {
			return i
		}
	}
	return -1
}

// ResolutionPtBin returns the truth pt bin, or -1 for negative or NaN pt.
func ResolutionPtBin(pt float64) int {
	if !(pt >= 0) {
		return -1
	}
	for i := 0; i+1 < len(resolutionPtEdges); i++ {
		if pt < resolutionPtEdges[i+1] {
			return i
		}
	}
	return len(resolutionPtEdges) - 1
}
