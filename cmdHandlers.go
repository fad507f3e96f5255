package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tefkah-labs/fingerprint-engine/config"
	"github.com/tefkah-labs/fingerprint-engine/service"
)


func find(ctx context.Context, svc *service.Service, filePath string) {
	fmt.Printf("fingerprinting %s...\n", filePath)
	start := time.Now()

	result, err := svc.Identify(ctx, filePath)
	if err != nil {
		color.Red("error identifying file: %v", err)
		return
	}

	fmt.Printf("query: %d peaks, %d hashes (%.1fs audio, %s)\n",
		result.Query.NPeaks, result.Query.NHashes, result.Query.Duration, time.Since(start))

	if !result.MatchFound {
		color.Yellow("no match found.")
		return
	}

	top := result.Top
	limit := len(result.AllMatches)
	if limit > 10 {
		limit = 10
	}

	fmt.Println("top matches:")
	for _, c := range result.AllMatches[:limit] {
		fmt.Printf("\t- %s by %s, confidence: %.1f%%, offset: %.2fs\n",
			c.Song.Title, c.Song.Artist, c.Confidence, c.Offset)
	}

	color.Green("\nfinal prediction: %s by %s, confidence: %.1f%%",
		top.Song.Title, top.Song.Artist, top.Confidence)
}

func save(ctx context.Context, svc *service.Service, cfg config.Config, path, titleOverride, artistOverride string) {
	info, err := os.Stat(path)
	if err != nil {
		color.Red("error: %v", err)
		return
	}

	if !info.IsDir() {
		title, artist := titleArtistFor(path, titleOverride, artistOverride)
		if err := saveEntry(ctx, svc, path, title, artist); err != nil {
			color.Red("error saving %s: %v", path, err)
		}
		return
	}

	var filePaths []string
	filepath.Walk(path, func(fp string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			filePaths = append(filePaths, fp)
		}
		return nil
	})

	processFilesConcurrently(ctx, svc, filePaths, cfg.Workers)
}

func titleArtistFor(path, titleOverride, artistOverride string) (string, string) {
	title := titleOverride
	artist := artistOverride
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if artist == "" {
		artist = "Unknown"
	}
	return title, artist
}

// processFilesConcurrently enrolls a batch of files across a worker pool
// bounded to the configured concurrency, so a large directory does not
// starve the machine of CPU for DSP work running elsewhere.
func processFilesConcurrently(ctx context.Context, svc *service.Service, filePaths []string, workers int) {
	if len(filePaths) == 0 {
		fmt.Println("no files to process")
		return
	}
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	successCount := 0
	errorCount := 0

	for _, fp := range filePaths {
		fp := fp
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			title, artist := titleArtistFor(fp, "", "")
			if err := saveEntry(gctx, svc, fp, title, artist); err != nil {
				color.Red("error: %v", err)
				errorCount++
			} else {
				successCount++
			}
			return nil
		})
	}

	g.Wait()

	fmt.Printf("\nprocessed %d files: %d successful, %d failed\n", len(filePaths), successCount, errorCount)
}

func saveEntry(ctx context.Context, svc *service.Service, filePath, title, artist string) error {
	result, err := svc.Enroll(ctx, filePath, filepath.Base(filePath), title, artist)
	if err != nil {
		return fmt.Errorf("failed to process '%s': %w", filePath, err)
	}

	fmt.Printf("indexed '%s' by '%s' (song_id=%d, %d peaks, %d hashes)\n",
		title, artist, result.SongID, result.NPeaks, result.NHashes)
	return nil
}

func songs(ctx context.Context, svc *service.Service) {
	list, err := svc.Songs(ctx)
	if err != nil {
		color.Red("error listing songs: %v", err)
		return
	}
	if len(list) == 0 {
		fmt.Println("catalog is empty")
		return
	}
	for _, s := range list {
		fmt.Printf("%d\t%s\t%s\t%s (%.1fs)\n", s.ID, s.Filename, s.Title, s.Artist, s.Duration)
	}
}

func stats(ctx context.Context, svc *service.Service) {
	st, err := svc.CatalogStats(ctx)
	if err != nil {
		color.Red("error fetching stats: %v", err)
		return
	}
	fmt.Printf("songs: %d\n", st.TotalSongs)
	fmt.Printf("fingerprints: %d\n", st.TotalFingerprints)
	fmt.Printf("avg fingerprints/song: %.1f\n", st.AvgFingerprintsPerSong)
}

func reset(ctx context.Context, svc *service.Service) {
	if err := svc.Reset(ctx); err != nil {
		color.Red("error resetting catalog: %v", err)
		return
	}
	color.Green("catalog reset")
}

func serve(svc *service.Service, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /", handleRoot)
	mux.HandleFunc("GET /songs", handleSongs(svc))
	mux.HandleFunc("POST /fingerprint", handleFingerprint(svc))
	mux.HandleFunc("POST /identify", handleIdentify(svc))
	mux.HandleFunc("GET /stats", handleStats(svc))
	mux.HandleFunc("POST /reset", handleReset(svc))
	mux.HandleFunc("GET /files/{filename}", handleFile)

	handler := requestLogger(logger)(corsMiddleware(mux))

	logger.Info("starting http server", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger assigns every inbound request a correlation id, echoes it
// back via X-Request-Id so a client can quote it when reporting a problem,
// and logs the request's outcome tagged with that id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := uuid.NewString()
			w.Header().Set("X-Request-Id", reqID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.InfoContext(r.Context(), "http request",
				slog.String("request_id", reqID),
				slog.String("method", r.Method), slog.String("path", r.URL.Path),
				slog.Int("status", rec.status), slog.Duration("elapsed", time.Since(start)))
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
