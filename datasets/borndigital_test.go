package datasets

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
)

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func zipBytes(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range members {
		member, err := writer.Create(name)
		require.NoError(t, err)
		_, err = member.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestReadDelimitedLabels(t *testing.T) {
	testCases := []struct {
		name     string
		line     string
		wantPath string
		wantText string
	}{
		{
			name:     "text containing a comma",
			line:     `img1.jpg,"hello, world"`,
			wantPath: filepath.Join("/data", "img1.jpg"),
			wantText: "hello, world",
		},
		{
			name:     "plain word",
			line:     `word_2.png,"Reimbursement"`,
			wantPath: filepath.Join("/data", "word_2.png"),
			wantText: "Reimbursement",
		},
		{
			name:     "surrounding whitespace trimmed before quote stripping",
			line:     `word_3.png, "padded" `,
			wantPath: filepath.Join("/data", "word_3.png"),
			wantText: "padded",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labelsPath := filepath.Join(t.TempDir(), "gt.txt")
			require.NoError(t, os.WriteFile(labelsPath, []byte(tc.line+"\n"), 0o644))

			entries, err := ReadDelimitedLabels(labelsPath, "/data")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.wantPath, entries[0].ImagePath)
			assert.Nil(t, entries[0].Region)
			assert.Equal(t, tc.wantText, entries[0].Text)
		})
	}
}

func TestReadDelimitedLabelsStripsBOM(t *testing.T) {
	labelsPath := filepath.Join(t.TempDir(), "gt.txt")
	content := "\ufeffword_1.png,\"first\"\nword_2.png,\"second\"\n"
	require.NoError(t, os.WriteFile(labelsPath, []byte(content), 0o644))

	entries, err := ReadDelimitedLabels(labelsPath, "/data")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join("/data", "word_1.png"), entries[0].ImagePath)
	assert.Equal(t, "first", entries[0].Text)
}

func TestReadDelimitedLabelsSkipsEmptyText(t *testing.T) {
	labelsPath := filepath.Join(t.TempDir(), "gt.txt")
	content := "word_1.png,\"\"\nword_2.png,\"kept\"\n\n"
	require.NoError(t, os.WriteFile(labelsPath, []byte(content), 0o644))

	entries, err := ReadDelimitedLabels(labelsPath, "/data")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Text)
}

func TestReadDelimitedLabelsRejectsMalformedLine(t *testing.T) {
	labelsPath := filepath.Join(t.TempDir(), "gt.txt")
	require.NoError(t, os.WriteFile(labelsPath, []byte("no-comma-here\n"), 0o644))

	_, err := ReadDelimitedLabels(labelsPath, "/data")
	require.Error(t, err)
	assert.True(t, dataerrors.IsCode(err, dataerrors.ErrorParseFailed))
}

func TestBornDigitalRejectsUnknownSplitBeforeAnyIO(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "never-created")

	_, err := GetBornDigitalRecognizerDataset(context.Background(), &BornDigitalOptions{
		Split:    "validation",
		CacheDir: cacheDir,
	})
	require.Error(t, err)
	assert.True(t, dataerrors.IsCode(err, dataerrors.ErrorInvalidArgument))
	assert.NoDirExists(t, cacheDir)
}

func TestGetBornDigitalRecognizerDataset(t *testing.T) {
	trainZip := zipBytes(t, map[string]string{
		"gt.txt":     "\ufeffword_1.png,\"Training\"\nword_2.png,\"pairs, kept\"\n",
		"word_1.png": "png-ish",
		"word_2.png": "png-ish",
	})
	testZip := zipBytes(t, map[string]string{
		"word_10.png": "png-ish",
	})
	testGT := []byte("word_10.png,\"Holdout\"\n")

	mux := http.NewServeMux()
	mux.HandleFunc("/train.zip", func(w http.ResponseWriter, r *http.Request) { w.Write(trainZip) })
	mux.HandleFunc("/test.zip", func(w http.ResponseWriter, r *http.Request) { w.Write(testZip) })
	mux.HandleFunc("/test_gt.txt", func(w http.ResponseWriter, r *http.Request) { w.Write(testGT) })
	server := httptest.NewServer(mux)
	defer server.Close()

	sources := DefaultSources()
	sources.BornDigitalTrain = Source{URL: server.URL + "/train.zip", SHA256: digestOf(trainZip)}
	sources.BornDigitalTest = Source{URL: server.URL + "/test.zip", SHA256: digestOf(testZip)}
	sources.BornDigitalTestGT = Source{URL: server.URL + "/test_gt.txt", SHA256: digestOf(testGT)}

	cacheDir := t.TempDir()
	dataset, err := GetBornDigitalRecognizerDataset(context.Background(), &BornDigitalOptions{
		Split:    BornDigitalSplitTrainTest,
		CacheDir: cacheDir,
		Sources:  sources,
	})
	require.NoError(t, err)
	require.Len(t, dataset, 3)

	trainDir := filepath.Join(cacheDir, "borndigital", "train")
	assert.Equal(t, filepath.Join(trainDir, "word_1.png"), dataset[0].ImagePath)
	assert.Equal(t, "Training", dataset[0].Text)
	assert.Equal(t, "pairs, kept", dataset[1].Text)
	assert.Equal(t, "Holdout", dataset[2].Text)

	// Extracted images are laid out under the split directories
	assert.FileExists(t, filepath.Join(trainDir, "word_2.png"))
	assert.FileExists(t, filepath.Join(cacheDir, "borndigital", "test", "word_10.png"))
}

func TestGetBornDigitalRecognizerDatasetFailsOnBadDigest(t *testing.T) {
	trainZip := zipBytes(t, map[string]string{"gt.txt": "word_1.png,\"x\"\n"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(trainZip)
	}))
	defer server.Close()

	sources := DefaultSources()
	sources.BornDigitalTrain = Source{URL: server.URL + "/train.zip", SHA256: digestOf([]byte("tampered"))}

	_, err := GetBornDigitalRecognizerDataset(context.Background(), &BornDigitalOptions{
		Split:    BornDigitalSplitTrain,
		CacheDir: t.TempDir(),
		Sources:  sources,
	})
	require.Error(t, err)
	assert.True(t, dataerrors.IsCode(err, dataerrors.ErrorVerificationFailed))
}
