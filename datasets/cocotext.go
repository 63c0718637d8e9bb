/**
 * COCO-Text v2 recognizer dataset assembler
 *
 * The release archive only bundles the annotation index; the images
 * themselves are hosted on the COCO image server and are fetched one by
 * one. Image downloads fan out across a bounded worker pool with a
 * progress bar; the first failure aborts the whole assembly so a
 * partial dataset is never returned.
 */

package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/ocr-trainingdata/archive"
	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
	"github.com/adverant/nexus/ocr-trainingdata/fetch"
	"github.com/adverant/nexus/ocr-trainingdata/logging"
)

// COCO-Text split values
const (
	CocoTextSplitTrain    = "train"
	CocoTextSplitVal      = "val"
	CocoTextSplitTrainVal = "trainval"
)

const cocoTextIndexMember = "cocotext.v2.json"

// Annotation attribute values recognized by the filters
const (
	cocoLanguageEnglish   = "english"
	cocoLegibilityLegible = "legible"
)

// CocoTextImage is one image record from the annotation index
type CocoTextImage struct {
	Set      string `json:"set"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// CocoTextAnnotation is one text-instance record from the index. Mask
// is a flattened polygon: x0, y0, x1, y1, ...
type CocoTextAnnotation struct {
	Mask       []float64 `json:"mask"`
	Text       string    `json:"utf8_string"`
	Language   string    `json:"language"`
	Legibility string    `json:"legibility"`
}

// CocoTextIndex is the decoded cocotext.v2.json annotation index
type CocoTextIndex struct {
	Imgs      map[string]CocoTextImage      `json:"imgs"`
	ImgToAnns map[string][]int64            `json:"imgToAnns"`
	Anns      map[string]CocoTextAnnotation `json:"anns"`
}

// CocoTextRaw is the raw-metadata passthrough returned alongside the
// dataset when Options.ReturnRawLabels is set.
type CocoTextRaw struct {
	Index     *CocoTextIndex
	ImagesDir string
}

// CocoTextOptions configures a COCO-Text dataset assembly
type CocoTextOptions struct {
	// Split selects which portion to assemble: train, val, or trainval
	Split string

	// CacheDir is the cache root; empty means DefaultCacheDir()
	CacheDir string

	// Limit caps the number of distinct images processed. The sorted
	// selected-image-ID list is truncated before annotations resolve,
	// so the output may hold fewer than Limit total entries.
	Limit int

	// LegibleOnly drops annotations whose legibility is not "legible"
	LegibleOnly bool

	// EnglishOnly drops annotations whose language is not "english"
	EnglishOnly bool

	// ReturnRawLabels also returns the decoded annotation index
	ReturnRawLabels bool

	// Concurrency bounds the image-download worker pool; 0 means NumCPU
	Concurrency int

	// Sources overrides the remote artifact locations; nil means DefaultSources()
	Sources *SourceManifest

	// Fetcher performs verified downloads; nil means a default fetcher
	Fetcher *fetch.Fetcher

	// Logger for progress messages; nil means a package default
	Logger *logging.Logger

	// ShowProgress renders a progress bar during the image fan-out
	ShowProgress bool
}

// GetCocoTextRecognizerDataset assembles the COCO-Text recognizer
// dataset for the requested split: fetches and decodes the annotation
// index, downloads every selected image concurrently, then emits one
// entry per annotation with its polygon region.
//
// The raw passthrough return is nil unless opts.ReturnRawLabels is set.
func GetCocoTextRecognizerDataset(ctx context.Context, opts *CocoTextOptions) (Dataset, *CocoTextRaw, error) {
	if opts == nil {
		opts = &CocoTextOptions{}
	}
	split := opts.Split
	if split == "" {
		split = CocoTextSplitTrain
	}
	switch split {
	case CocoTextSplitTrain, CocoTextSplitVal, CocoTextSplitTrainVal:
	default:
		return nil, nil, dataerrors.NewInvalidArgumentError(fmt.Sprintf("unsupported COCO-Text split: %q", split))
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
		logger = logging.NewLogger("CocoText")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	mainDir := filepath.Join(cacheDir, "coco-text")
	imagesDir := filepath.Join(mainDir, "images")

	logger.Info("Fetching COCO-Text annotation archive", "url", sources.CocoTextLabels.URL)
	labelsZip, err := fetcher.DownloadAndVerify(ctx, sources.CocoTextLabels.URL, mainDir, sources.CocoTextLabels.SHA256)
	if err != nil {
		return nil, nil, err
	}

	indexBytes, err := archive.ReadZipMember(labelsZip, cocoTextIndexMember)
	if err != nil {
		return nil, nil, err
	}
	var index CocoTextIndex
	if err := json.Unmarshal(indexBytes, &index); err != nil {
		return nil, nil, dataerrors.NewParseFailedError(cocoTextIndexMember, err)
	}

	selectedIDs := selectImageIDs(&index, split)
	if opts.Limit > 0 && opts.Limit < len(selectedIDs) {
		selectedIDs = selectedIDs[:opts.Limit]
	}
	logger.Info("Selected images", "split", split, "count", len(selectedIDs))

	if err := downloadCocoImages(ctx, &index, selectedIDs, imagesDir, sources.CocoImageBaseURL, concurrency, fetcher, opts.ShowProgress); err != nil {
		return nil, nil, err
	}

	dataset := assembleCocoEntries(&index, selectedIDs, imagesDir, opts.LegibleOnly, opts.EnglishOnly)
	logger.Info("COCO-Text dataset assembled", "split", split, "entries", len(dataset))

	if opts.ReturnRawLabels {
		return dataset, &CocoTextRaw{Index: &index, ImagesDir: imagesDir}, nil
	}
	return dataset, nil, nil
}

// selectImageIDs returns the IDs of images belonging to the split,
// sorted numerically so assembly order is deterministic regardless of
// map iteration or download completion order.
func selectImageIDs(index *CocoTextIndex, split string) []string {
	wanted := map[string]bool{}
	switch split {
	case CocoTextSplitTrain:
		wanted[CocoTextSplitTrain] = true
	case CocoTextSplitVal:
		wanted[CocoTextSplitVal] = true
	case CocoTextSplitTrainVal:
		wanted[CocoTextSplitTrain] = true
		wanted[CocoTextSplitVal] = true
	}

	ids := make([]string, 0, len(index.Imgs))
	for id, img := range index.Imgs {
		if wanted[img.Set] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}

// downloadCocoImages fans one verified fetch per distinct image across
// a bounded worker pool. The first failure cancels the remaining
// fetches and fails the assembly.
func downloadCocoImages(ctx context.Context, index *CocoTextIndex, selectedIDs []string, imagesDir, baseURL string, concurrency int, fetcher *fetch.Fetcher, showProgress bool) error {
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(selectedIDs)), "downloading images")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, id := range selectedIDs {
		fileName := index.Imgs[id].FileName
		group.Go(func() error {
			url := fmt.Sprintf("%s/%s", baseURL, fileName)
			// Per-image downloads publish no digests upstream
			if _, err := fetcher.DownloadAndVerify(groupCtx, url, imagesDir, ""); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	return group.Wait()
}

// assembleCocoEntries resolves each selected image's annotations into
// normalized label entries, honoring the legibility/language filters
// and reshaping the flat mask into (x, y) points.
func assembleCocoEntries(index *CocoTextIndex, selectedIDs []string, imagesDir string, legibleOnly, englishOnly bool) Dataset {
	var dataset Dataset
	for _, id := range selectedIDs {
		imagePath := filepath.Join(imagesDir, index.Imgs[id].FileName)
		for _, annID := range index.ImgToAnns[id] {
			ann, ok := index.Anns[strconv.FormatInt(annID, 10)]
			if !ok {
				continue
			}
			if englishOnly && ann.Language != cocoLanguageEnglish {
				continue
			}
			if legibleOnly && ann.Legibility != cocoLegibilityLegible {
				continue
			}
			if ann.Text == "" {
				continue
			}
			dataset = append(dataset, LabelEntry{
				ImagePath: imagePath,
				Region:    reshapeMask(ann.Mask),
				Text:      ann.Text,
			})
		}
	}
	return dataset
}

// reshapeMask converts a flattened x0,y0,x1,y1,... polygon into points.
// A trailing odd coordinate is dropped.
func reshapeMask(mask []float64) []Point {
	points := make([]Point, 0, len(mask)/2)
	for i := 0; i+1 < len(mask); i += 2 {
		points = append(points, Point{X: mask[i], Y: mask[i+1]})
	}
	return points
}
