package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tefkah-labs/fingerprint-engine/apperrors"
	"github.com/tefkah-labs/fingerprint-engine/service"
)

const maxUploadSize = 200 << 20 // 200 MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	writeJSON(w, kind.StatusCode(), map[string]any{
		"success": false,
		"detail":  err.Error(),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "fingerprint-engine",
		"version": "1.0.0",
		"endpoints": []string{
			"GET /health",
			"GET /songs",
			"POST /fingerprint",
			"POST /identify",
			"GET /stats",
			"POST /reset",
			"GET /files/{filename}",
		},
	})
}

func handleSongs(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		songs, err := svc.Songs(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"songs": songs,
			"count": len(songs),
		})
	}
}

// saveUpload writes a multipart form's "audio" file into uploadsDir, keyed
// by the client's own filename so the same upload twice maps to the same
// catalog entry (store.Enroll upserts by filename). The stored name is
// always the base name of header.Filename; an existing file of that name
// under uploadsDir is truncated and overwritten, never renamed.
func saveUpload(r *http.Request) (path, storedName string, err error) {
	file, header, ferr := r.FormFile("audio")
	if ferr != nil {
		return "", "", apperrors.InputMissingf("no audio file provided: %v", ferr)
	}
	defer file.Close()

	storedName = filepath.Base(header.Filename)
	path = filepath.Join(uploadsDir, storedName)

	dst, cerr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if cerr != nil {
		return "", "", apperrors.Wrap(apperrors.StoreFailure, "create uploaded file", cerr)
	}
	defer dst.Close()

	if _, werr := io.Copy(dst, file); werr != nil {
		return "", "", apperrors.Wrap(apperrors.StoreFailure, "write uploaded file", werr)
	}

	return path, storedName, nil
}

func handleFingerprint(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, apperrors.InputMissingf("file too large or invalid form: %v", err))
			return
		}

		path, storedName, err := saveUpload(r)
		if err != nil {
			writeError(w, err)
			return
		}

		title := r.FormValue("title")
		if title == "" {
			title = "Unknown"
		}
		artist := r.FormValue("artist")
		if artist == "" {
			artist = "Unknown"
		}

		result, err := svc.Enroll(r.Context(), path, storedName, title, artist)
		if err != nil {
			os.Remove(path)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"song_id": result.SongID,
			"message": "fingerprinted and enrolled",
			"stats": map[string]any{
				"duration":         result.Duration,
				"peaks_found":      result.NPeaks,
				"hashes_generated": result.NHashes,
			},
		})
	}
}

func handleIdentify(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, apperrors.InputMissingf("file too large or invalid form: %v", err))
			return
		}

		path, _, err := saveUpload(r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer os.Remove(path)

		result, err := svc.Identify(r.Context(), path)
		if err != nil {
			writeError(w, err)
			return
		}

		queryStats := map[string]any{
			"duration":    result.Query.Duration,
			"peaks_found": result.Query.NPeaks,
			"n_hashes":    result.Query.NHashes,
		}

		if !result.MatchFound {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":     true,
				"match_found": false,
				"query_stats": queryStats,
				"all_matches": []any{},
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"match_found": true,
			"song":        result.Top.Song,
			"confidence":  result.Top.Confidence,
			"match_details": map[string]any{
				"song_offset": result.Top.Offset,
				"support":     result.Top.Support,
				"total_hits":  result.Top.TotalHits,
			},
			"query_stats": queryStats,
			"all_matches": result.AllMatches,
		})
	}
}

func handleStats(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.CatalogStats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"database_stats": map[string]any{
				"total_songs":               st.TotalSongs,
				"total_fingerprints":        st.TotalFingerprints,
				"avg_fingerprints_per_song": st.AvgFingerprintsPerSong,
			},
		})
	}
}

func handleReset(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Reset(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "catalog reset",
		})
	}
}

func handleFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	path := filepath.Join(uploadsDir, filepath.Base(filename))

	if _, err := os.Stat(path); err != nil {
		writeError(w, apperrors.NotFoundf("file %q not found", filename))
		return
	}

	http.ServeFile(w, r, path)
}
