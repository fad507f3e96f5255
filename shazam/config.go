package shazam

// FingerprintConfig controls all tunable parameters in the spectrogram, peak
// extraction, and hash generation pipeline. The defaults below are the
// fingerprint contract: changing them invalidates every hash already
// persisted in the index store, since the hash token is derived from
// quantities (mel bin, time delta) that only carry meaning relative to
// these exact parameters.
type FingerprintConfig struct {
	SampleRate    int     // Hz, PCM is expected resampled to this rate
	NFFT          int     // FFT window size in samples (power of 2)
	HopSize       int     // samples between successive FFT frames
	NMels         int     // number of mel filterbank bands
	PeakThreshold float64 // literal dB-space threshold, see DESIGN.md
	MinDT         float64 // seconds, minimum anchor-target time delta
	MaxDT         float64 // seconds, maximum anchor-target time delta
	Fanout        int     // max target peaks paired with each anchor
}

// FreqBands partitions the mel axis into the five fixed bands peak picking
// scans independently. Upper bound of the last band is NMels.
func (c FingerprintConfig) FreqBands() [][2]int {
	return [][2]int{
		{0, 10},
		{10, 20},
		{20, 40},
		{40, 80},
		{80, c.NMels},
	}
}

// DefaultConfig returns the fixed fingerprint parameters: SR=22050, a 2048
// sample FFT window, 512 sample hop, 128 mel bands, a 0.1 peak threshold
// applied directly to the dB-normalised spectrogram, a 0.1-2.0s hashing
// window, and a fanout of 5.
func DefaultConfig() FingerprintConfig {
	return FingerprintConfig{
		SampleRate:    22050,
		NFFT:          2048,
		HopSize:       512,
		NMels:         128,
		PeakThreshold: 0.1,
		MinDT:         0.1,
		MaxDT:         2.0,
		Fanout:        5,
	}
}
