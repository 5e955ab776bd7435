package audio

import "math"

// SilenceRMSThreshold is the energy floor below which a whole buffer is
// treated as containing no speech. Samples are normalized to [-1, 1], so
// this corresponds to roughly -46 dBFS.
const SilenceRMSThreshold = 0.005

// CalculateRMS returns the root-mean-square energy of a sample buffer.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilent reports whether a buffer's overall energy falls below the
// threshold. It is a whole-buffer gate, not a frame-by-frame detector:
// recordings with any audible speech carry enough energy to pass.
func IsSilent(samples []float32, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
