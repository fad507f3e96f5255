package shazam

import "sort"

// Peak is a single constellation-map point: a time in seconds, a mel bin
// index, and the dB magnitude observed there. Derived only, never persisted.
type Peak struct {
	Time float64
	Bin  int
	Mag  float64
}

// ExtractPeaks scans a mel-power-in-dB matrix M (as returned by Spectrogram)
// band by band and frame by frame. For each of the five fixed frequency
// bands and each frame it finds the band's argmax bin, keeps it only if its
// value exceeds cfg.PeakThreshold and it is a temporal local maximum against
// its immediate time neighbours (out-of-range neighbours are treated as
// satisfying the comparison), and emits a peak at that (time, bin).
//
// The output is sorted by time ascending, ties broken by frequency
// ascending, and is deterministic for a fixed M and cfg.
func ExtractPeaks(M [][]float64, cfg FingerprintConfig) []Peak {
	if len(M) == 0 || len(M[0]) == 0 {
		return nil
	}

	nFrames := len(M[0])
	frameDuration := float64(cfg.HopSize) / float64(cfg.SampleRate)

	var peaks []Peak
	for _, band := range cfg.FreqBands() {
		lo, hi := band[0], band[1]
		if hi > cfg.NMels {
			hi = cfg.NMels
		}
		if lo >= hi {
			continue
		}

		for t := 0; t < nFrames; t++ {
			bestBin, bestVal := lo, M[lo][t]
			for k := lo + 1; k < hi; k++ {
				if M[k][t] > bestVal {
					bestBin, bestVal = k, M[k][t]
				}
			}

			if bestVal <= cfg.PeakThreshold {
				continue
			}

			prevOK := t == 0 || M[bestBin][t-1] <= bestVal
			nextOK := t == nFrames-1 || M[bestBin][t+1] <= bestVal
			if !prevOK || !nextOK {
				continue
			}

			peaks = append(peaks, Peak{
				Time: float64(t) * frameDuration,
				Bin:  bestBin,
				Mag:  bestVal,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Time != peaks[j].Time {
			return peaks[i].Time < peaks[j].Time
		}
		return peaks[i].Bin < peaks[j].Bin
	})

	return peaks
}
