// Package config loads the process-wide, read-only settings for the
// recognition engine. Every setting has a hard default, so the process
// starts correctly with zero environment variables set.
package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the HTTP facade and the CLI.
type Config struct {
	// DBPath is the path to the SQLite database file backing the index store.
	DBPath string
	// HTTPAddr is the bind address for the HTTP facade, e.g. ":8080".
	HTTPAddr string
	// FFmpegBin is the executable name (or path) used to normalize .m4a and
	// .flac input before decoding.
	FFmpegBin string
	// Workers bounds the worker pool used for concurrent DSP/enrollment
	// across a batch of files.
	Workers int
}

// Load reads configuration from the environment, honoring an optional .env
// file in the working directory if present. Unset variables fall back to
// their documented defaults; a missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:    getEnv("FINGERPRINT_DB_PATH", "fingerprints.db"),
		HTTPAddr:  getEnv("FINGERPRINT_HTTP_ADDR", ":8080"),
		FFmpegBin: getEnv("FINGERPRINT_FFMPEG_BIN", "ffmpeg"),
		Workers:   getEnvInt("FINGERPRINT_WORKERS", runtime.NumCPU()),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
