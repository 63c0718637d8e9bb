package datasets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
)

// testCocoIndex builds a small annotation index: images 2 and 10 are in
// the train set, image 5 in val. Annotation 101 is illegible and 102 is
// non-english so the filters have something to drop.
func testCocoIndex(t *testing.T) []byte {
	t.Helper()
	index := CocoTextIndex{
		Imgs: map[string]CocoTextImage{
			"10": {Set: "train", FileName: "COCO_train2014_000000000010.jpg"},
			"2":  {Set: "train", FileName: "COCO_train2014_000000000002.jpg"},
			"5":  {Set: "val", FileName: "COCO_train2014_000000000005.jpg"},
		},
		ImgToAnns: map[string][]int64{
			"2":  {100, 101},
			"10": {102, 103},
			"5":  {104},
		},
		Anns: map[string]CocoTextAnnotation{
			"100": {Mask: []float64{0, 0, 4, 0, 4, 2, 0, 2}, Text: "stop", Language: "english", Legibility: "legible"},
			"101": {Mask: []float64{1, 1, 3, 1, 3, 2, 1, 2}, Text: "blurry", Language: "english", Legibility: "illegible"},
			"102": {Mask: []float64{0, 0, 2, 0, 2, 2, 0, 2}, Text: "rue", Language: "french", Legibility: "legible"},
			"103": {Mask: []float64{0, 0, 2, 0, 2, 2, 0, 2}, Text: "exit", Language: "english", Legibility: "legible"},
			"104": {Mask: []float64{0, 0, 2, 0, 2, 2, 0, 2}, Text: "val-only", Language: "english", Legibility: "legible"},
		},
	}
	data, err := json.Marshal(index)
	require.NoError(t, err)
	return data
}

// newCocoServer serves the annotation archive and per-image downloads,
// counting image requests. failFile, when non-empty, names one image
// that will 404.
func newCocoServer(t *testing.T, indexJSON []byte, imageRequests *atomic.Int64, failFile string) (*httptest.Server, *SourceManifest) {
	t.Helper()
	archiveBytes := zipBytes(t, map[string]string{cocoTextIndexMember: string(indexJSON)})

	mux := http.NewServeMux()
	mux.HandleFunc("/cocotext.v2.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archiveBytes)
	})
	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		if imageRequests != nil {
			imageRequests.Add(1)
		}
		if failFile != "" && filepath.Base(r.URL.Path) == failFile {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jpeg bytes for " + filepath.Base(r.URL.Path)))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sources := DefaultSources()
	sources.CocoTextLabels = Source{URL: server.URL + "/cocotext.v2.zip", SHA256: digestOf(archiveBytes)}
	sources.CocoImageBaseURL = server.URL + "/images"
	return server, sources
}

func TestCocoTextRejectsUnknownSplitBeforeAnyIO(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "never-created")

	_, _, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:    "test",
		CacheDir: cacheDir,
	})
	require.Error(t, err)
	assert.True(t, dataerrors.IsCode(err, dataerrors.ErrorInvalidArgument))
	assert.NoDirExists(t, cacheDir)
}

func TestGetCocoTextRecognizerDataset(t *testing.T) {
	var imageRequests atomic.Int64
	_, sources := newCocoServer(t, testCocoIndex(t), &imageRequests, "")

	cacheDir := t.TempDir()
	dataset, raw, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:    CocoTextSplitTrain,
		CacheDir: cacheDir,
		Sources:  sources,
	})
	require.NoError(t, err)
	assert.Nil(t, raw)

	// Only the two train images were downloaded
	assert.Equal(t, int64(2), imageRequests.Load())

	// Entries follow numeric image-ID order: image 2 before image 10
	require.Len(t, dataset, 4)
	imagesDir := filepath.Join(cacheDir, "coco-text", "images")
	assert.Equal(t, filepath.Join(imagesDir, "COCO_train2014_000000000002.jpg"), dataset[0].ImagePath)
	assert.Equal(t, "stop", dataset[0].Text)
	assert.Equal(t, "blurry", dataset[1].Text)
	assert.Equal(t, "rue", dataset[2].Text)
	assert.Equal(t, "exit", dataset[3].Text)

	// The flat mask reshapes into (x, y) points
	require.Len(t, dataset[0].Region, 4)
	assert.Equal(t, Point{X: 4, Y: 0}, dataset[0].Region[1])
}

func TestGetCocoTextRecognizerDatasetFilters(t *testing.T) {
	_, sources := newCocoServer(t, testCocoIndex(t), nil, "")

	dataset, _, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:       CocoTextSplitTrain,
		CacheDir:    t.TempDir(),
		LegibleOnly: true,
		EnglishOnly: true,
		Sources:     sources,
	})
	require.NoError(t, err)

	texts := make([]string, 0, len(dataset))
	for _, entry := range dataset {
		texts = append(texts, entry.Text)
	}
	assert.Equal(t, []string{"stop", "exit"}, texts)
}

func TestGetCocoTextRecognizerDatasetLimitCapsDistinctImages(t *testing.T) {
	var imageRequests atomic.Int64
	_, sources := newCocoServer(t, testCocoIndex(t), &imageRequests, "")

	dataset, _, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:    CocoTextSplitTrain,
		CacheDir: t.TempDir(),
		Limit:    1,
		Sources:  sources,
	})
	require.NoError(t, err)

	// Limit truncates the sorted image-ID list, so only image 2
	// (and both of its annotations) survives
	assert.Equal(t, int64(1), imageRequests.Load())
	require.Len(t, dataset, 2)
	assert.Equal(t, "stop", dataset[0].Text)
	assert.Equal(t, "blurry", dataset[1].Text)
}

func TestGetCocoTextRecognizerDatasetTrainValCoversBothSets(t *testing.T) {
	_, sources := newCocoServer(t, testCocoIndex(t), nil, "")

	dataset, _, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:    CocoTextSplitTrainVal,
		CacheDir: t.TempDir(),
		Sources:  sources,
	})
	require.NoError(t, err)
	require.Len(t, dataset, 5)
	// Numeric ID order: image 2, then 5, then 10
	assert.Equal(t, "val-only", dataset[2].Text)
}

func TestGetCocoTextRecognizerDatasetRawPassthrough(t *testing.T) {
	_, sources := newCocoServer(t, testCocoIndex(t), nil, "")

	cacheDir := t.TempDir()
	_, raw, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:           CocoTextSplitVal,
		CacheDir:        cacheDir,
		ReturnRawLabels: true,
		Sources:         sources,
	})
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, filepath.Join(cacheDir, "coco-text", "images"), raw.ImagesDir)
	assert.Len(t, raw.Index.Imgs, 3)
	assert.Equal(t, "val-only", raw.Index.Anns["104"].Text)
}

func TestGetCocoTextRecognizerDatasetFailsFastOnFetchError(t *testing.T) {
	_, sources := newCocoServer(t, testCocoIndex(t), nil, "COCO_train2014_000000000010.jpg")

	dataset, _, err := GetCocoTextRecognizerDataset(context.Background(), &CocoTextOptions{
		Split:    CocoTextSplitTrain,
		CacheDir: t.TempDir(),
		Sources:  sources,
	})
	require.Error(t, err)
	assert.True(t, dataerrors.IsCode(err, dataerrors.ErrorDownloadFailed))
	assert.Nil(t, dataset)
}
