package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tefkah-labs/fingerprint-engine/store"
)

type fakeIndex struct {
	postings map[string][]store.Posting
	songs    map[int64]store.Song
}

func (f fakeIndex) Lookup(ctx context.Context, tokens []string) (map[string][]store.Posting, error) {
	out := make(map[string][]store.Posting)
	for _, tok := range tokens {
		if p, ok := f.postings[tok]; ok {
			out[tok] = p
		}
	}
	return out, nil
}

func (f fakeIndex) GetSongs(ctx context.Context, ids []int64) (map[int64]store.Song, error) {
	out := make(map[int64]store.Song)
	for _, id := range ids {
		if s, ok := f.songs[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func TestRankEmptyQueryReturnsEmpty(t *testing.T) {
	cands, err := Rank(context.Background(), fakeIndex{}, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestRankBelowMinSupportIsFilteredOut(t *testing.T) {
	idx := fakeIndex{
		postings: map[string][]store.Posting{
			"tok1": {{SongID: 1, TimeOffset: 10.0}},
			"tok2": {{SongID: 1, TimeOffset: 11.0}},
		},
		songs: map[int64]store.Song{1: {ID: 1, Title: "Thin"}},
	}
	hashes := []QueryHash{
		{Token: "tok1", QueryTime: 0.0},
		{Token: "tok2", QueryTime: 1.0},
	}

	cands, err := Rank(context.Background(), idx, hashes)
	require.NoError(t, err)
	assert.Empty(t, cands, "song with only 2 hit pairs must not clear the 3-pair floor")
}

func TestRankSelfMatchIsHighConfidence(t *testing.T) {
	// query hashes at t=0,1,2,3,4 align perfectly with stored postings at a
	// +10s offset: a saturated self-match.
	idx := fakeIndex{
		postings: map[string][]store.Posting{
			"tok0": {{SongID: 7, TimeOffset: 10.0}},
			"tok1": {{SongID: 7, TimeOffset: 11.0}},
			"tok2": {{SongID: 7, TimeOffset: 12.0}},
			"tok3": {{SongID: 7, TimeOffset: 13.0}},
			"tok4": {{SongID: 7, TimeOffset: 14.0}},
		},
		songs: map[int64]store.Song{7: {ID: 7, Title: "Exact"}},
	}
	hashes := []QueryHash{
		{Token: "tok0", QueryTime: 0.0},
		{Token: "tok1", QueryTime: 1.0},
		{Token: "tok2", QueryTime: 2.0},
		{Token: "tok3", QueryTime: 3.0},
		{Token: "tok4", QueryTime: 4.0},
	}

	cands, err := Rank(context.Background(), idx, hashes)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, int64(7), cands[0].SongID)
	assert.InDelta(t, 10.0, cands[0].Offset, 1e-9)
	assert.GreaterOrEqual(t, cands[0].Confidence, 95.0)
}

func TestRankRanksByConfidence(t *testing.T) {
	idx := fakeIndex{
		postings: map[string][]store.Posting{
			// song 1: all 3 hits agree on offset 5 -> high confidence
			"a": {{SongID: 1, TimeOffset: 5.0}},
			"b": {{SongID: 1, TimeOffset: 5.0}},
			"c": {{SongID: 1, TimeOffset: 5.0}},
			// song 2: 3 hits scattered across different offsets -> low confidence
			"d": {{SongID: 2, TimeOffset: 5.0}, {SongID: 2, TimeOffset: 50.0}, {SongID: 2, TimeOffset: 99.0}},
		},
		songs: map[int64]store.Song{
			1: {ID: 1, Title: "Coherent"},
			2: {ID: 2, Title: "Scattered"},
		},
	}
	hashes := []QueryHash{
		{Token: "a", QueryTime: 0.0},
		{Token: "b", QueryTime: 0.0},
		{Token: "c", QueryTime: 0.0},
		{Token: "d", QueryTime: 0.0},
	}

	cands, err := Rank(context.Background(), idx, hashes)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, int64(1), cands[0].SongID, "coherent song must rank above scattered one")
	assert.True(t, cands[0].Confidence > cands[1].Confidence)
}

func TestDominantOffsetTieBreaksOnSmallerBucket(t *testing.T) {
	pairs := []pair{
		{queryTime: 0, storedTime: 1.0},  // bucket 10
		{queryTime: 0, storedTime: -1.0}, // bucket -10
	}
	delta, count := dominantOffset(pairs)
	assert.Equal(t, 1, count)
	assert.InDelta(t, -1.0, delta, 1e-9)
}
