// Package service implements the orchestration layer (C6): the enroll and
// identify pipelines that glue audio decoding, fingerprint extraction, the
// index store, and the matcher together. It is constructed once at process
// startup and injected into the HTTP facade and CLI; it holds no
// package-level state.
package service

import (
	"context"
	"log/slog"

	"github.com/tefkah-labs/fingerprint-engine/apperrors"
	"github.com/tefkah-labs/fingerprint-engine/decode"
	"github.com/tefkah-labs/fingerprint-engine/match"
	"github.com/tefkah-labs/fingerprint-engine/shazam"
	"github.com/tefkah-labs/fingerprint-engine/store"
)

// Decoder is the subset of decode.Decoder the service depends on.
type Decoder interface {
	Decode(ctx context.Context, path string, targetSR int) (pcm []float64, sourceSR int, err error)
}

// Index is the subset of store.Store the service depends on, letting tests
// swap in a lighter fake without standing up SQLite.
type Index interface {
	match.Lookuper
	Enroll(ctx context.Context, filename, title, artist string, duration float64, hashes []shazam.HashPosting) (int64, error)
	ListSongs(ctx context.Context) ([]store.Song, error)
	Counts(ctx context.Context) (nSongs, nPostings int, err error)
	Reset(ctx context.Context) error
}

// Service wires the recognition pipeline's collaborators into the two
// public operations: Enroll and Identify.
type Service struct {
	decoder Decoder
	index   Index
	cfg     shazam.FingerprintConfig
	logger  *slog.Logger
}

// New constructs a Service. cfg fixes the DSP parameters for every pipeline
// run through this instance.
func New(decoder Decoder, index Index, cfg shazam.FingerprintConfig, logger *slog.Logger) *Service {
	return &Service{decoder: decoder, index: index, cfg: cfg, logger: logger}
}

// EnrollResult is the outcome of a successful enrollment.
type EnrollResult struct {
	SongID   int64
	Duration float64
	NPeaks   int
	NHashes  int
}

// Enroll decodes the file at path, fingerprints it, and writes the result
// to the index under filename/title/artist. Re-enrolling an existing
// filename replaces its postings while preserving its song_id.
func (s *Service) Enroll(ctx context.Context, path, filename, title, artist string) (EnrollResult, error) {
	pcm, _, err := s.decoder.Decode(ctx, path, s.cfg.SampleRate)
	if err != nil {
		return EnrollResult{}, err
	}

	duration := float64(len(pcm)) / float64(s.cfg.SampleRate)

	peaks, hashes := shazam.Fingerprint(pcm, s.cfg)

	songID, err := s.index.Enroll(ctx, filename, title, artist, duration, hashes)
	if err != nil {
		return EnrollResult{}, err
	}

	s.logger.InfoContext(ctx, "fingerprinted and enrolled",
		slog.String("filename", filename), slog.Int64("song_id", songID),
		slog.Int("n_peaks", len(peaks)), slog.Int("n_hashes", len(hashes)))

	return EnrollResult{
		SongID:   songID,
		Duration: duration,
		NPeaks:   len(peaks),
		NHashes:  len(hashes),
	}, nil
}

// QueryStats describes the query clip's own fingerprint, regardless of
// whether a match was found.
type QueryStats struct {
	Duration float64
	NPeaks   int
	NHashes  int
}

// IdentifyResult is the outcome of an identify call. MatchFound is false
// when no candidate cleared the matcher's minimum-support floor; this is
// not an error condition.
type IdentifyResult struct {
	MatchFound bool
	Top        match.Candidate
	AllMatches []match.Candidate
	Query      QueryStats
}

// Identify decodes the file at path, fingerprints it, and ranks it against
// the catalog. An empty or no-match result is returned with MatchFound
// false, never as an error.
func (s *Service) Identify(ctx context.Context, path string) (IdentifyResult, error) {
	pcm, _, err := s.decoder.Decode(ctx, path, s.cfg.SampleRate)
	if err != nil {
		return IdentifyResult{}, err
	}

	duration := float64(len(pcm)) / float64(s.cfg.SampleRate)
	peaks, hashes := shazam.Fingerprint(pcm, s.cfg)

	queryHashes := make([]match.QueryHash, len(hashes))
	for i, h := range hashes {
		queryHashes[i] = match.QueryHash{Token: h.Hash, QueryTime: h.AnchorTime}
	}

	stats := QueryStats{Duration: duration, NPeaks: len(peaks), NHashes: len(hashes)}

	candidates, err := match.Rank(ctx, s.index, queryHashes)
	if err != nil {
		return IdentifyResult{}, err
	}

	s.logger.InfoContext(ctx, "identify query ranked",
		slog.Int("n_hashes", len(hashes)), slog.Int("n_candidates", len(candidates)))

	if len(candidates) == 0 {
		return IdentifyResult{MatchFound: false, Query: stats}, nil
	}

	return IdentifyResult{
		MatchFound: true,
		Top:        candidates[0],
		AllMatches: candidates,
		Query:      stats,
	}, nil
}

// Songs returns the full catalog, for the /songs facade route and the list
// CLI command.
func (s *Service) Songs(ctx context.Context) ([]store.Song, error) {
	return s.index.ListSongs(ctx)
}

// Stats reports catalog-wide counts, for the /stats facade route.
type Stats struct {
	TotalSongs             int
	TotalFingerprints      int
	AvgFingerprintsPerSong float64
}

// CatalogStats computes aggregate counts over the current catalog.
func (s *Service) CatalogStats(ctx context.Context) (Stats, error) {
	nSongs, nPostings, err := s.index.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}

	avg := 0.0
	if nSongs > 0 {
		avg = float64(nPostings) / float64(nSongs)
	}

	return Stats{
		TotalSongs:             nSongs,
		TotalFingerprints:      nPostings,
		AvgFingerprintsPerSong: avg,
	}, nil
}

// Reset drops the entire catalog.
func (s *Service) Reset(ctx context.Context) error {
	return s.index.Reset(ctx)
}

// SongByID looks a single song up by id, returning a NotFound error when no
// song has that id.
func (s *Service) SongByID(ctx context.Context, id int64) (store.Song, error) {
	songs, err := s.index.GetSongs(ctx, []int64{id})
	if err != nil {
		return store.Song{}, err
	}
	song, ok := songs[id]
	if !ok {
		return store.Song{}, apperrors.NotFoundf("song %d not found", id)
	}
	return song, nil
}
