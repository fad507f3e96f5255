package shazam

import (
	"math"
	"testing"
)

func TestFingerprintSilentAudioProducesNothing(t *testing.T) {
	cfg := DefaultConfig()
	pcm := make([]float64, cfg.SampleRate*2)

	peaks, hashes := Fingerprint(pcm, cfg)
	if len(peaks) != 0 {
		t.Fatalf("expected zero peaks for silent audio, got %d", len(peaks))
	}
	if len(hashes) != 0 {
		t.Fatalf("expected zero hashes for silent audio, got %d", len(hashes))
	}
}

func TestFingerprintHashBudget(t *testing.T) {
	cfg := DefaultConfig()
	pcm := make([]float64, cfg.SampleRate*3)
	for i := range pcm {
		// a mix of tones to spread energy across several mel bands/frames
		pcm[i] = math.Sin(2*math.Pi*220*float64(i)/float64(cfg.SampleRate)) +
			0.5*math.Sin(2*math.Pi*880*float64(i)/float64(cfg.SampleRate))
	}

	peaks, hashes := Fingerprint(pcm, cfg)
	if len(hashes) > len(peaks)*cfg.Fanout {
		t.Fatalf("n_hashes %d exceeds n_peaks*fanout %d", len(hashes), len(peaks)*cfg.Fanout)
	}
}
