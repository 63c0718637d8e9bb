/**
 * Born-Digital (ICDAR Challenge 1, Task 3) recognizer dataset assembler
 *
 * Images come pre-cropped to single text instances, so Region is always
 * nil. Labels ship as a comma-delimited text file: the first field is
 * the image filename, the remaining fields (rejoined with commas) form
 * a quoted transcription.
 */

package datasets

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adverant/nexus/ocr-trainingdata/archive"
	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
	"github.com/adverant/nexus/ocr-trainingdata/fetch"
	"github.com/adverant/nexus/ocr-trainingdata/logging"
)

// Born-Digital split values
const (
	BornDigitalSplitTrain     = "train"
	BornDigitalSplitTest      = "test"
	BornDigitalSplitTrainTest = "traintest"
)

// BornDigitalOptions configures a Born-Digital dataset assembly
type BornDigitalOptions struct {
	// Split selects which portion to assemble: train, test, or traintest
	Split string

	// CacheDir is the cache root; empty means DefaultCacheDir()
	CacheDir string

	// Sources overrides the remote artifact locations; nil means DefaultSources()
	Sources *SourceManifest

	// Fetcher performs verified downloads; nil means a default fetcher
	Fetcher *fetch.Fetcher

	// Logger for progress messages; nil means a package default
	Logger *logging.Logger
}

// GetBornDigitalRecognizerDataset assembles the Born-Digital recognizer
// dataset for the requested split. Every returned entry has a nil
// Region because the images are already cropped.
func GetBornDigitalRecognizerDataset(ctx context.Context, opts *BornDigitalOptions) (Dataset, error) {
	if opts == nil {
		opts = &BornDigitalOptions{}
	}
	split := opts.Split
	if split == "" {
		split = BornDigitalSplitTrain
	}
	switch split {
	case BornDigitalSplitTrain, BornDigitalSplitTest, BornDigitalSplitTrainTest:
	default:
		return nil, dataerrors.NewInvalidArgumentError(fmt.Sprintf("unsupported Born-Digital split: %q", split))
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	sources := opts.Sources
	if sources == nil {
		sources = DefaultSources()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewFetcher(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("BornDigital")
	}

	mainDir := filepath.Join(cacheDir, "borndigital")
	var dataset Dataset

	if split == BornDigitalSplitTrain || split == BornDigitalSplitTrainTest {
		trainDir := filepath.Join(mainDir, "train")
		logger.Info("Fetching Born-Digital training archive", "url", sources.BornDigitalTrain.URL)
		archivePath, err := fetcher.DownloadAndVerify(ctx, sources.BornDigitalTrain.URL, mainDir, sources.BornDigitalTrain.SHA256)
		if err != nil {
			return nil, err
		}
		if err := archive.ExtractZip(archivePath, trainDir); err != nil {
			return nil, err
		}
		entries, err := ReadDelimitedLabels(filepath.Join(trainDir, "gt.txt"), trainDir)
		if err != nil {
			return nil, err
		}
		dataset = append(dataset, entries...)
	}

	if split == BornDigitalSplitTest || split == BornDigitalSplitTrainTest {
		testDir := filepath.Join(mainDir, "test")
		logger.Info("Fetching Born-Digital test archive", "url", sources.BornDigitalTest.URL)
		archivePath, err := fetcher.DownloadAndVerify(ctx, sources.BornDigitalTest.URL, mainDir, sources.BornDigitalTest.SHA256)
		if err != nil {
			return nil, err
		}
		if err := archive.ExtractZip(archivePath, testDir); err != nil {
			return nil, err
		}
		// Test ground truth ships separately from the image archive
		gtPath, err := fetcher.DownloadAndVerify(ctx, sources.BornDigitalTestGT.URL, testDir, sources.BornDigitalTestGT.SHA256)
		if err != nil {
			return nil, err
		}
		entries, err := ReadDelimitedLabels(gtPath, testDir)
		if err != nil {
			return nil, err
		}
		dataset = append(dataset, entries...)
	}

	logger.Info("Born-Digital dataset assembled", "split", split, "entries", len(dataset))
	return dataset, nil
}

// ReadDelimitedLabels parses a comma-delimited labels file into
// normalized entries. Each line is: <filename>,<quoted text>. The text
// may itself contain commas, so everything after the first field is
// rejoined before the surrounding quote characters are stripped.
func ReadDelimitedLabels(labelsPath, imageRoot string) (Dataset, error) {
	file, err := os.Open(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file %s: %w", labelsPath, err)
	}
	defer file.Close()

	var dataset Dataset
	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			// The upstream files are written with a UTF-8 BOM
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		segments := strings.Split(line, ",")
		if len(segments) < 2 {
			return nil, dataerrors.NewParseFailedError(labelsPath,
				fmt.Errorf("malformed label line %q", line))
		}
		text := stripQuotes(strings.TrimSpace(strings.Join(segments[1:], ",")))
		if text == "" {
			continue
		}
		dataset = append(dataset, LabelEntry{
			ImagePath: filepath.Join(imageRoot, segments[0]),
			Region:    nil,
			Text:      text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", labelsPath, err)
	}
	return dataset, nil
}

// stripQuotes removes one surrounding quote pair from a label
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
