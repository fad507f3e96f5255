package shazam

import "testing"

func TestGenerateHashesRespectsFanout(t *testing.T) {
	cfg := DefaultConfig()

	// ten peaks, each 0.2s apart: every later peak is a valid target for
	// every earlier one (within MaxDT=2.0s for the first several).
	peaks := make([]Peak, 10)
	for i := range peaks {
		peaks[i] = Peak{Time: float64(i) * 0.2, Bin: i, Mag: 1}
	}

	hashes := GenerateHashes(peaks, cfg)
	if len(hashes) > len(peaks)*cfg.Fanout {
		t.Fatalf("n_hashes %d exceeds n_peaks*fanout %d", len(hashes), len(peaks)*cfg.Fanout)
	}
}

func TestGenerateHashesSkipsBelowMinDT(t *testing.T) {
	cfg := DefaultConfig()
	peaks := []Peak{
		{Time: 0.0, Bin: 1},
		{Time: 0.05, Bin: 2}, // dt=0.05 < MinDT, must be skipped entirely
	}

	hashes := GenerateHashes(peaks, cfg)
	if len(hashes) != 0 {
		t.Fatalf("expected no hashes below MinDT, got %d", len(hashes))
	}
}

func TestGenerateHashesStopsAtMaxDT(t *testing.T) {
	cfg := DefaultConfig()
	peaks := []Peak{
		{Time: 0.0, Bin: 1},
		{Time: 0.5, Bin: 2}, // dt=0.5, in range
		{Time: 3.0, Bin: 3}, // dt=3.0 > MaxDT, scan must stop here
		{Time: 3.1, Bin: 4}, // never reached from the first anchor; pairs with the 3.0 anchor (dt=0.1)
	}

	// the first anchor yields only (0.0, 0.5); the 3.0 anchor adds (3.0, 3.1)
	hashes := GenerateHashes(peaks, cfg)
	if len(hashes) != 2 {
		t.Fatalf("expected exactly 2 in-range pairs, (0.0, 0.5) and (3.0, 3.1), got %d", len(hashes))
	}
}

func TestGenerateHashesMatchesManualPairCount(t *testing.T) {
	cfg := DefaultConfig()
	peaks := make([]Peak, 8)
	for i := range peaks {
		peaks[i] = Peak{Time: float64(i) * 0.2, Bin: i}
	}

	want := 0
	for i, anchor := range peaks {
		found := 0
		for j := i + 1; j < len(peaks) && found < cfg.Fanout; j++ {
			dt := peaks[j].Time - anchor.Time
			if dt < cfg.MinDT {
				continue
			}
			if dt > cfg.MaxDT {
				break
			}
			found++
		}
		want += found
	}

	hashes := GenerateHashes(peaks, cfg)
	if len(hashes) != want {
		t.Fatalf("expected %d hashes matching manual pair count, got %d", want, len(hashes))
	}
}

func TestHashTokenIsTwelveHexChars(t *testing.T) {
	token := hashToken(3, 7, 0.456)
	if len(token) != 12 {
		t.Fatalf("expected 12 hex chars, got %d (%q)", len(token), token)
	}
	for _, r := range token {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("non-hex character in token: %q", token)
		}
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	a := hashToken(3, 7, 0.456)
	b := hashToken(3, 7, 0.456)
	if a != b {
		t.Fatalf("expected identical tokens for identical input, got %q != %q", a, b)
	}
}

func TestHashTokenDiffersOnDelta(t *testing.T) {
	a := hashToken(3, 7, 0.456)
	b := hashToken(3, 7, 0.457)
	if a == b {
		t.Fatalf("expected different tokens for different deltas")
	}
}
