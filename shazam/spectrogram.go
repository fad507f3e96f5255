package shazam

import "math"

// Spectrogram computes the mel-power-in-dB matrix for a mono PCM signal
// already resampled to cfg.SampleRate: STFT with a Hann window, magnitude
// squared, a triangular mel filterbank, then conversion to dB relative to
// the matrix maximum. The returned matrix is indexed [mel][frame] and has
// cfg.NMels rows.
//
// Deterministic for identical input and cfg. Stable for silent input: an
// all-zero signal produces an all-floor matrix, never NaN.
func Spectrogram(pcm []float64, cfg FingerprintConfig) [][]float64 {
	window := hannWindow(cfg.NFFT)
	filters := melFilterbank(cfg.NMels, cfg.NFFT, cfg.SampleRate)

	nFrames := 0
	if len(pcm) >= cfg.NFFT {
		nFrames = 1 + (len(pcm)-cfg.NFFT)/cfg.HopSize
	}

	power := make([][]float64, cfg.NMels)
	for m := range power {
		power[m] = make([]float64, nFrames)
	}

	frame := make([]float64, cfg.NFFT)
	for t := 0; t < nFrames; t++ {
		start := t * cfg.HopSize
		for i := 0; i < cfg.NFFT; i++ {
			frame[i] = pcm[start+i] * window[i]
		}

		spectrum := FFT(frame)
		nBins := cfg.NFFT/2 + 1

		for m, filter := range filters {
			var sum float64
			for k := 0; k < nBins && k < len(filter); k++ {
				mag := realImagMagnitudeSquared(spectrum[k])
				sum += mag * filter[k]
			}
			power[m][t] = sum
		}
	}

	return powerToDB(power)
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func realImagMagnitudeSquared(c complex128) float64 {
	re, im := real(c), imag(c)
	return re*re + im*im
}

// powerToDB converts a power matrix to dB relative to its own maximum,
// clipped at a -80 dB floor, matching the reference implementation's
// power_to_db(..., ref=np.max).
func powerToDB(power [][]float64) [][]float64 {
	const floorDB = -80.0

	max := 0.0
	for _, row := range power {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}

	db := make([][]float64, len(power))
	for m, row := range power {
		db[m] = make([]float64, len(row))
		for t, v := range row {
			var ratio float64
			if max > 0 {
				ratio = v / max
			}
			var level float64
			if ratio <= 0 {
				level = floorDB
			} else {
				level = 10 * math.Log10(ratio)
				if level < floorDB {
					level = floorDB
				}
			}
			db[m][t] = level
		}
	}

	return db
}
