package shazam

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// HashPosting is a single (hash token, anchor time) pair emitted by
// GenerateHashes, ready to be persisted as a posting by the index store.
type HashPosting struct {
	Hash       string
	AnchorTime float64
}

// GenerateHashes walks the time-ordered peak list and, for each anchor peak,
// pairs it with the first cfg.Fanout subsequent peaks whose time delta falls
// in [cfg.MinDT, cfg.MaxDT]. Peaks with a delta below MinDT are skipped (the
// scan continues); the scan stops as soon as a delta exceeds MaxDT, since the
// peak list is time-sorted and nothing further can qualify.
//
// n_hashes <= n_peaks * cfg.Fanout always holds.
func GenerateHashes(peaks []Peak, cfg FingerprintConfig) []HashPosting {
	var hashes []HashPosting

	for i, anchor := range peaks {
		found := 0
		for j := i + 1; j < len(peaks) && found < cfg.Fanout; j++ {
			target := peaks[j]
			dt := target.Time - anchor.Time

			if dt < cfg.MinDT {
				continue
			}
			if dt > cfg.MaxDT {
				break
			}

			hashes = append(hashes, HashPosting{
				Hash:       hashToken(anchor.Bin, target.Bin, dt),
				AnchorTime: anchor.Time,
			})
			found++
		}
	}

	return hashes
}

// hashToken derives the 12-hex-character fingerprint hash from an anchor
// bin, a target bin, and their time delta in seconds: the MD5 digest of
// "{f_anchor}_{f_target}_{round_down(dt*1000)}", truncated to its first 12
// hex characters (48 bits). MD5 is used only for its uniform bit
// distribution over the truncated space, not for any cryptographic property.
func hashToken(anchorBin, targetBin int, dtSeconds float64) string {
	deltaMs := int64(dtSeconds * 1000) // truncation toward zero == round_down for dt >= 0
	key := fmt.Sprintf("%d_%d_%d", anchorBin, targetBin, deltaMs)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
