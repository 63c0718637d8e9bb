/**
 * datafetch - OCR training dataset prefetcher
 *
 * Warms the on-disk cache for a named dataset/split so training jobs
 * can start without network access:
 * - Verified downloads (SHA-256 pinned archives, atomic cache moves)
 * - Concurrent per-image fan-out for COCO-Text with a progress bar
 * - Source manifest overrides for mirror deployments
 *
 * Usage:
 *   datafetch -dataset borndigital -split traintest
 *   datafetch -dataset cocotext -split val -limit 100 -legible -english
 */

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/ocr-trainingdata/datasets"
	"github.com/adverant/nexus/ocr-trainingdata/fetch"
	"github.com/adverant/nexus/ocr-trainingdata/internal/config"
	"github.com/adverant/nexus/ocr-trainingdata/logging"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	datasetName := flag.String("dataset", "", "dataset to prefetch: cocotext or borndigital")
	split := flag.String("split", "train", "dataset split to prefetch")
	limit := flag.Int("limit", 0, "cap on distinct COCO-Text images (0 = no cap)")
	legibleOnly := flag.Bool("legible", false, "keep only legible COCO-Text annotations")
	englishOnly := flag.Bool("english", false, "keep only english COCO-Text annotations")
	flag.Parse()

	if *datasetName == "" {
		log.Fatalf("Usage: datafetch -dataset <cocotext|borndigital> [-split <name>]")
	}

	logger := logging.NewLogger("DataFetch")
	if cfg.Verbose {
		logger = logging.NewVerboseLogger("DataFetch")
	}

	logger.Info("Starting prefetch",
		"dataset", *datasetName, "split", *split,
		"cacheDir", cfg.CacheDir, "concurrency", cfg.FetchConcurrency)

	sources := datasets.DefaultSources()
	if cfg.ManifestPath != "" {
		sources, err = datasets.LoadSourceManifest(cfg.ManifestPath)
		if err != nil {
			log.Fatalf("Failed to load source manifest: %v", err)
		}
		logger.Info("Loaded source manifest", "path", cfg.ManifestPath)
	}

	fetcher := fetch.NewFetcher(&fetch.Options{
		Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	// Cancel in-flight downloads on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.Warn("Received signal, cancelling prefetch", "signal", sig)
		cancel()
	}()

	start := time.Now()
	var entries int

	switch *datasetName {
	case "cocotext":
		dataset, _, err := datasets.GetCocoTextRecognizerDataset(ctx, &datasets.CocoTextOptions{
			Split:        *split,
			CacheDir:     cfg.CacheDir,
			Limit:        *limit,
			LegibleOnly:  *legibleOnly,
			EnglishOnly:  *englishOnly,
			Concurrency:  cfg.FetchConcurrency,
			Sources:      sources,
			Fetcher:      fetcher,
			Logger:       logger,
			ShowProgress: true,
		})
		if err != nil {
			log.Fatalf("COCO-Text prefetch failed: %v", err)
		}
		entries = len(dataset)

	case "borndigital":
		dataset, err := datasets.GetBornDigitalRecognizerDataset(ctx, &datasets.BornDigitalOptions{
			Split:    *split,
			CacheDir: cfg.CacheDir,
			Sources:  sources,
			Fetcher:  fetcher,
			Logger:   logger,
		})
		if err != nil {
			log.Fatalf("Born-Digital prefetch failed: %v", err)
		}
		entries = len(dataset)

	default:
		log.Fatalf("Unknown dataset %q (expected cocotext or borndigital)", *datasetName)
	}

	logger.Info("Prefetch complete",
		"dataset", *datasetName, "split", *split,
		"entries", entries, "duration", time.Since(start).Round(time.Millisecond))
}
