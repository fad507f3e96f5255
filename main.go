package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tefkah-labs/fingerprint-engine/config"
	"github.com/tefkah-labs/fingerprint-engine/decode"
	"github.com/tefkah-labs/fingerprint-engine/service"
	"github.com/tefkah-labs/fingerprint-engine/shazam"
	"github.com/tefkah-labs/fingerprint-engine/store"
)

// uploadsDir holds audio files accepted through the HTTP facade, so the
// auxiliary /files/{filename} route can serve them back.
const uploadsDir = "uploads"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		logger.Error("create uploads directory", slog.Any("error", err))
		os.Exit(1)
	}

	idx, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("open index store", slog.Any("error", err))
		os.Exit(1)
	}
	defer idx.Close()

	dec := decode.New(cfg.FFmpegBin)
	svc := service.New(dec, idx, shazam.DefaultConfig(), logger)

	ctx := context.Background()

	switch os.Args[1] {
	case "find":
		if len(os.Args) < 3 {
			fmt.Println("usage: fingerprint-engine find <path_to_audio_file>")
			os.Exit(1)
		}
		find(ctx, svc, os.Args[2])

	case "save":
		saveCmd := flag.NewFlagSet("save", flag.ExitOnError)
		title := saveCmd.String("title", "", "title override (single file only)")
		artist := saveCmd.String("artist", "", "artist override (single file only)")
		saveCmd.Parse(os.Args[2:])
		if saveCmd.NArg() < 1 {
			fmt.Println("usage: fingerprint-engine save [-title t] [-artist a] <file_or_dir>")
			os.Exit(1)
		}
		save(ctx, svc, cfg, saveCmd.Arg(0), *title, *artist)

	case "songs":
		songs(ctx, svc)

	case "stats":
		stats(ctx, svc)

	case "reset":
		reset(ctx, svc)

	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		addr := serveCmd.String("addr", cfg.HTTPAddr, "address to bind")
		serveCmd.Parse(os.Args[2:])
		serve(svc, *addr, logger)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: fingerprint-engine <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  find  <audio_file>                    identify a file against the catalog")
	fmt.Println("  save  [-title t] [-artist a] <path>    enroll one file or every file under a directory")
	fmt.Println("  songs                                  list the catalog")
	fmt.Println("  stats                                  print catalog-wide counts")
	fmt.Println("  reset                                  drop and recreate the catalog")
	fmt.Println("  serve [-addr :8080]                    start the HTTP server")
}
