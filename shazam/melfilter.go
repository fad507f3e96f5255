package shazam

import "math"

// hzToMel and melToHz use the standard (O'Shaughnessy) mel scale, the same
// one librosa defaults to, so the filterbank below reproduces the reference
// spectrogram's frequency resolution band for band.
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds nMels triangular filters spaced uniformly on the mel
// scale and covering [0, sampleRate/2], each expressed as weights over the
// nFFT/2+1 real FFT bins. Row m of the returned matrix is the weight applied
// to each power-spectrum bin when computing mel band m.
func melFilterbank(nMels, nFFT, sampleRate int) [][]float64 {
	nBins := nFFT/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)

	// nMels+2 points equally spaced in mel space, converted back to Hz and
	// then to fractional FFT bin indices.
	points := make([]float64, nMels+2)
	for i := range points {
		mel := float64(i) * maxMel / float64(nMels+1)
		hz := melToHz(mel)
		points[i] = hz * float64(nFFT) / float64(sampleRate)
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		left, center, right := points[m], points[m+1], points[m+2]
		row := make([]float64, nBins)
		for k := 0; k < nBins; k++ {
			f := float64(k)
			switch {
			case f < left || f > right:
				row[k] = 0
			case f <= center:
				if center > left {
					row[k] = (f - left) / (center - left)
				}
			default:
				if right > center {
					row[k] = (right - f) / (right - center)
				}
			}
		}
		filters[m] = row
	}

	return filters
}
