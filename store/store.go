// Package store implements the persistent fingerprint index: songs and
// their hash postings, embedded in a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tefkah-labs/fingerprint-engine/apperrors"
	"github.com/tefkah-labs/fingerprint-engine/shazam"
)

// Song is a catalog entry: a song_id, its unique filename, optional
// metadata, its duration, and when it was created.
type Song struct {
	ID        int64
	Filename  string
	Title     string
	Artist    string
	Duration  float64
	CreatedAt time.Time
}

// Posting is one (song, stored time offset) occurrence of a hash, as
// returned by Lookup.
type Posting struct {
	SongID     int64
	TimeOffset float64
}

// Store is the index store (C4): song metadata plus the hash -> postings
// inverted index. All methods are safe for concurrent use; writes (Enroll,
// Reset) are serialized with writeMu in addition to SQLite's own locking,
// while reads (Lookup, ListSongs, Counts) proceed concurrently against a
// WAL snapshot.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	writeMu sync.Mutex
}

// Open creates (if needed) and opens the SQLite database at path, applying
// the schema idempotently and enabling WAL mode so readers do not block
// behind an in-flight enrollment transaction.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreFailure, "open sqlite database", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.StoreFailure, "enable WAL mode", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.StoreFailure, "enable foreign keys", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS songs (
			song_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			filename   TEXT NOT NULL UNIQUE,
			title      TEXT NOT NULL DEFAULT '',
			artist     TEXT NOT NULL DEFAULT '',
			duration   REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS postings (
			posting_id  INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id     INTEGER NOT NULL REFERENCES songs(song_id) ON DELETE CASCADE,
			hash        TEXT NOT NULL,
			time_offset REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_hash ON postings(hash)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return apperrors.Wrap(apperrors.StoreFailure, "create schema", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enroll upserts a song by filename (preserving its song_id if it already
// exists), deletes its existing postings, and inserts the new set of
// hashes — all inside a single transaction, serialized against other
// writers by writeMu so readers never see a partially-written song.
func (s *Store) Enroll(ctx context.Context, filename, title, artist string, duration float64, hashes []shazam.HashPosting) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreFailure, "begin enroll transaction", err)
	}
	defer tx.Rollback()

	songID, err := upsertSong(ctx, tx, filename, title, artist, duration)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE song_id = ?`, songID); err != nil {
		return 0, apperrors.Wrap(apperrors.StoreFailure, "delete existing postings", err)
	}

	if err := insertPostings(ctx, tx, songID, hashes); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(apperrors.StoreFailure, "commit enroll transaction", err)
	}

	s.logger.InfoContext(ctx, "enrolled song",
		slog.Int64("song_id", songID), slog.String("filename", filename), slog.Int("n_postings", len(hashes)))

	return songID, nil
}

func upsertSong(ctx context.Context, tx *sql.Tx, filename, title, artist string, duration float64) (int64, error) {
	var songID int64
	err := tx.QueryRowContext(ctx, `SELECT song_id FROM songs WHERE filename = ?`, filename).Scan(&songID)

	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO songs (filename, title, artist, duration, created_at) VALUES (?, ?, ?, ?, ?)`,
			filename, title, artist, duration, time.Now().UTC())
		if err != nil {
			return 0, apperrors.Wrap(apperrors.StoreFailure, "insert song", err)
		}
		songID, err = res.LastInsertId()
		if err != nil {
			return 0, apperrors.Wrap(apperrors.StoreFailure, "read inserted song id", err)
		}
		return songID, nil

	case err != nil:
		return 0, apperrors.Wrap(apperrors.StoreFailure, "query existing song", err)

	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE songs SET title = ?, artist = ?, duration = ? WHERE song_id = ?`,
			title, artist, duration, songID); err != nil {
			return 0, apperrors.Wrap(apperrors.StoreFailure, "update existing song", err)
		}
		return songID, nil
	}
}

// insertBatchSize bounds the number of rows per multi-row INSERT, the same
// batching pattern used for bulk fingerprint writes against a relational
// store, sized well under SQLite's default parameter limit.
const insertBatchSize = 500

func insertPostings(ctx context.Context, tx *sql.Tx, songID int64, hashes []shazam.HashPosting) error {
	for start := 0; start < len(hashes); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		placeholders := make([]byte, 0, len(batch)*4)
		args := make([]any, 0, len(batch)*3)
		for i, h := range batch {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, "(?,?,?)"...)
			args = append(args, songID, h.Hash, h.AnchorTime)
		}

		query := fmt.Sprintf(`INSERT INTO postings (song_id, hash, time_offset) VALUES %s`, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.Wrap(apperrors.StoreFailure, "insert postings batch", err)
		}
	}
	return nil
}

// Lookup returns every posting for the given hash tokens, deduplicated
// neither across tokens nor within a token; order is implementation-defined.
func (s *Store) Lookup(ctx context.Context, tokens []string) (map[string][]Posting, error) {
	result := make(map[string][]Posting, len(tokens))
	if len(tokens) == 0 {
		return result, nil
	}

	for start := 0; start < len(tokens); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		placeholders := make([]byte, 0, len(batch)*2)
		args := make([]any, 0, len(batch))
		for i, tok := range batch {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, tok)
		}

		query := fmt.Sprintf(`SELECT hash, song_id, time_offset FROM postings WHERE hash IN (%s)`, placeholders)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.StoreFailure, "lookup postings", err)
		}

		for rows.Next() {
			var hash string
			var p Posting
			if err := rows.Scan(&hash, &p.SongID, &p.TimeOffset); err != nil {
				rows.Close()
				return nil, apperrors.Wrap(apperrors.StoreFailure, "scan posting row", err)
			}
			result[hash] = append(result[hash], p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(apperrors.StoreFailure, "iterate posting rows", err)
		}
		rows.Close()
	}

	return result, nil
}

// GetSongs returns the song records for the given ids, keyed by song_id.
func (s *Store) GetSongs(ctx context.Context, ids []int64) (map[int64]Song, error) {
	result := make(map[int64]Song, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT song_id, filename, title, artist, duration, created_at FROM songs WHERE song_id IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreFailure, "query songs by id", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sg Song
		if err := rows.Scan(&sg.ID, &sg.Filename, &sg.Title, &sg.Artist, &sg.Duration, &sg.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.StoreFailure, "scan song row", err)
		}
		result[sg.ID] = sg
	}
	return result, rows.Err()
}

// ListSongs returns every song in the catalog, ordered by song_id.
func (s *Store) ListSongs(ctx context.Context) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id, filename, title, artist, duration, created_at FROM songs ORDER BY song_id`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreFailure, "list songs", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var sg Song
		if err := rows.Scan(&sg.ID, &sg.Filename, &sg.Title, &sg.Artist, &sg.Duration, &sg.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.StoreFailure, "scan song row", err)
		}
		songs = append(songs, sg)
	}
	return songs, rows.Err()
}

// Counts returns the number of songs and the number of postings in the
// catalog, for the /stats facade and operator CLI.
func (s *Store) Counts(ctx context.Context) (nSongs, nPostings int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&nSongs); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.StoreFailure, "count songs", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings`).Scan(&nPostings); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.StoreFailure, "count postings", err)
	}
	return nSongs, nPostings, nil
}

// Reset drops and recreates the catalog, destroying every song and posting.
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.StoreFailure, "begin reset transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM postings`); err != nil {
		return apperrors.Wrap(apperrors.StoreFailure, "clear postings", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM songs`); err != nil {
		return apperrors.Wrap(apperrors.StoreFailure, "clear songs", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('songs', 'postings')`); err != nil {
		return apperrors.Wrap(apperrors.StoreFailure, "reset autoincrement counters", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.StoreFailure, "commit reset transaction", err)
	}

	s.logger.InfoContext(ctx, "catalog reset")
	return nil
}
