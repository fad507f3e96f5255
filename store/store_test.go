package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tefkah-labs/fingerprint-engine/shazam"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingerprints.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnrollThenListSongs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hashes := []shazam.HashPosting{
		{Hash: "abcdef012345", AnchorTime: 1.0},
		{Hash: "112233445566", AnchorTime: 2.0},
	}

	songID, err := s.Enroll(ctx, "a.wav", "Title A", "Artist A", 30.0, hashes)
	require.NoError(t, err)
	require.NotZero(t, songID)

	songs, err := s.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Equal(t, "Title A", songs[0].Title)
	require.Equal(t, songID, songs[0].ID)

	nSongs, nPostings, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, nSongs)
	require.Equal(t, 2, nPostings)
}

func TestReEnrollPreservesSongIDAndReplacesPostings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := []shazam.HashPosting{{Hash: "aaaaaaaaaaaa", AnchorTime: 0}}
	songID, err := s.Enroll(ctx, "a.wav", "T", "A", 10, first)
	require.NoError(t, err)

	second := []shazam.HashPosting{
		{Hash: "bbbbbbbbbbbb", AnchorTime: 0},
		{Hash: "cccccccccccc", AnchorTime: 1},
		{Hash: "dddddddddddd", AnchorTime: 2},
	}
	songID2, err := s.Enroll(ctx, "a.wav", "T", "A", 10, second)
	require.NoError(t, err)
	require.Equal(t, songID, songID2, "re-enrollment must preserve song_id")

	_, nPostings, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, len(second), nPostings, "old postings must be fully replaced, not appended")
}

func TestLookupReturnsPostingsAcrossSongs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enroll(ctx, "a.wav", "A", "", 10, []shazam.HashPosting{
		{Hash: "shared0000aa", AnchorTime: 5},
	})
	require.NoError(t, err)
	_, err = s.Enroll(ctx, "b.wav", "B", "", 10, []shazam.HashPosting{
		{Hash: "shared0000aa", AnchorTime: 9},
	})
	require.NoError(t, err)

	hits, err := s.Lookup(ctx, []string{"shared0000aa", "missing00000"})
	require.NoError(t, err)
	require.Len(t, hits["shared0000aa"], 2)
	require.Empty(t, hits["missing00000"])
}

func TestResetClearsCatalog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enroll(ctx, "a.wav", "A", "", 10, []shazam.HashPosting{{Hash: "x", AnchorTime: 0}})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	nSongs, nPostings, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, nSongs)
	require.Zero(t, nPostings)

	// re-enrollment after reset must succeed
	_, err = s.Enroll(ctx, "a.wav", "A", "", 10, nil)
	require.NoError(t, err)
}

func TestEnrollWithNoHashesSucceeds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	songID, err := s.Enroll(ctx, "silent.wav", "Silence", "", 5, nil)
	require.NoError(t, err)
	require.NotZero(t, songID)

	_, nPostings, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, nPostings)
}
