// Package match implements the histogram-of-time-offset matcher (C5): it
// turns a query's raw hash hits against the index store into a ranked,
// confidence-scored list of candidate songs.
package match

import (
	"context"
	"math"
	"sort"

	"github.com/tefkah-labs/fingerprint-engine/shazam"
	"github.com/tefkah-labs/fingerprint-engine/store"
)

// minSupport is the minimum number of hit pairs a song needs to be
// considered a candidate at all.
const minSupport = 3

// deltaBucket is the rounding granularity of the alignment histogram.
const deltaBucket = 0.1

// QueryHash is one (hash token, query time) pair produced by fingerprinting
// the query audio.
type QueryHash struct {
	Token     string
	QueryTime float64
}

// Candidate is one ranked match result.
type Candidate struct {
	SongID     int64
	Song       store.Song
	Confidence float64 // percent, 0-100
	Offset     float64 // delta*: stored_time - query_time, seconds
	Support    int     // C: hit pairs at the dominant offset
	TotalHits  int     // N: total hit pairs for this song
}

// Lookuper is the subset of store.Store the matcher depends on, so it can be
// exercised against a fake in tests without a real SQLite file.
type Lookuper interface {
	Lookup(ctx context.Context, tokens []string) (map[string][]store.Posting, error)
	GetSongs(ctx context.Context, ids []int64) (map[int64]store.Song, error)
}

type pair struct {
	queryTime  float64
	storedTime float64
}

// Rank runs the full matcher over a query's hash set. An empty query, or a
// query for which no song clears the minimum-support floor, yields an empty
// result — never an error.
func Rank(ctx context.Context, idx Lookuper, hashes []QueryHash) ([]Candidate, error) {
	H := len(hashes)
	if H == 0 {
		return nil, nil
	}

	tokens := make([]string, len(hashes))
	queryTimeByToken := make(map[string][]float64, len(hashes))
	for i, h := range hashes {
		tokens[i] = h.Token
		queryTimeByToken[h.Token] = append(queryTimeByToken[h.Token], h.QueryTime)
	}

	hits, err := idx.Lookup(ctx, tokens)
	if err != nil {
		return nil, err
	}

	buckets := make(map[int64][]pair)
	for token, postings := range hits {
		queryTimes := queryTimeByToken[token]
		for _, qt := range queryTimes {
			for _, p := range postings {
				buckets[p.SongID] = append(buckets[p.SongID], pair{queryTime: qt, storedTime: p.TimeOffset})
			}
		}
	}

	var ids []int64
	for songID, pairs := range buckets {
		if len(pairs) < minSupport {
			continue
		}
		ids = append(ids, songID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	songs, err := idx.GetSongs(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, songID := range ids {
		pairs := buckets[songID]
		delta, support := dominantOffset(pairs)
		n := len(pairs)

		coherence := float64(support) / float64(n)
		strength := float64(support) / float64(H)
		confidence := (0.6*coherence + 0.4*strength) * 100

		candidates = append(candidates, Candidate{
			SongID:     songID,
			Song:       songs[songID],
			Confidence: confidence,
			Offset:     delta,
			Support:    support,
			TotalHits:  n,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		return a.SongID < b.SongID
	})

	return candidates, nil
}

// dominantOffset rounds every pair's stored-minus-query delta to the
// nearest 0.1s bucket and returns the most populous bucket's representative
// value and count. Ties are broken toward the smaller bucket value.
func dominantOffset(pairs []pair) (delta float64, count int) {
	counts := make(map[int64]int)
	for _, p := range pairs {
		bucket := roundToBucket(p.storedTime - p.queryTime)
		counts[bucket]++
	}

	var bestBucket int64
	bestCount := -1
	for bucket, c := range counts {
		if c > bestCount || (c == bestCount && bucket < bestBucket) {
			bestBucket, bestCount = bucket, c
		}
	}

	return float64(bestBucket) * deltaBucket, bestCount
}

// roundToBucket rounds a seconds value to the nearest deltaBucket and
// returns it as an integer count of buckets, so equal deltas always hash to
// the same map key regardless of floating-point representation.
func roundToBucket(seconds float64) int64 {
	return int64(math.Round(seconds / deltaBucket))
}
